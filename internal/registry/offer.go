package registry

import (
	"fmt"
	"strings"
)

type PropertyType uint8

const (
	OneRoom PropertyType = iota + 1
	TwoRoom
	ThreeRoom
	FourRoom
	MultiRoom
)

var propertyTypeNames = map[PropertyType]string{
	OneRoom:   "OneRoom",
	TwoRoom:   "TwoRoom",
	ThreeRoom: "ThreeRoom",
	FourRoom:  "FourRoom",
	MultiRoom: "MultiRoom",
}

func (p PropertyType) String() string {
	if name, ok := propertyTypeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PropertyType(%d)", uint8(p))
}

func (p PropertyType) Valid() bool {
	_, ok := propertyTypeNames[p]
	return ok
}

func (p PropertyType) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: property type %d", ErrInvalidOffer, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *PropertyType) UnmarshalText(text []byte) error {
	v, err := ParsePropertyType(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParsePropertyType(s string) (PropertyType, error) {
	for v, name := range propertyTypeNames {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown property type %q", ErrInvalidOffer, s)
}

type Region uint8

const (
	Varna Region = iota + 1
	Byala
	Sofia
	Razgrad
	Obzor
	Burgas
	Plovdiv
)

var regionNames = map[Region]string{
	Varna:   "Varna",
	Byala:   "Byala",
	Sofia:   "Sofia",
	Razgrad: "Razgrad",
	Obzor:   "Obzor",
	Burgas:  "Burgas",
	Plovdiv: "Plovdiv",
}

func (r Region) String() string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Region(%d)", uint8(r))
}

func (r Region) Valid() bool {
	_, ok := regionNames[r]
	return ok
}

func (r Region) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: region %d", ErrInvalidOffer, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Region) UnmarshalText(text []byte) error {
	v, err := ParseRegion(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func ParseRegion(s string) (Region, error) {
	for v, name := range regionNames {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown region %q", ErrInvalidOffer, s)
}

// Offer is a property listing. Once stored under an id it is never changed.
type Offer struct {
	PropertyType PropertyType `json:"property_type"`
	Region       Region       `json:"region"`
	Squaring     string       `json:"squaring"`
	Construction string       `json:"construction"`
	Floor        string       `json:"floor"`
	Description  *string      `json:"description,omitempty"`
}

func (o Offer) Validate() error {
	if !o.PropertyType.Valid() {
		return fmt.Errorf("%w: property type %d", ErrInvalidOffer, uint8(o.PropertyType))
	}
	if !o.Region.Valid() {
		return fmt.Errorf("%w: region %d", ErrInvalidOffer, uint8(o.Region))
	}
	return nil
}

// Equal compares field by field, treating two absent descriptions as equal.
func (o Offer) Equal(other Offer) bool {
	if o.PropertyType != other.PropertyType ||
		o.Region != other.Region ||
		o.Squaring != other.Squaring ||
		o.Construction != other.Construction ||
		o.Floor != other.Floor {
		return false
	}
	switch {
	case o.Description == nil && other.Description == nil:
		return true
	case o.Description == nil || other.Description == nil:
		return false
	default:
		return *o.Description == *other.Description
	}
}
