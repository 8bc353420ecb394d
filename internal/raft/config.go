package raft

import (
	"fmt"
	"log/slog"

	"realestate/internal/configuration/properties"

	etcdraft "go.etcd.io/raft/v3"
)

type nodeConfig struct {
	id       uint64
	storage  *etcdraft.MemoryStorage
	raftNode etcdraft.Node
}

func newNodeConfig(rc *properties.RaftConfigProperties) (*nodeConfig, error) {
	id := rc.NodeId
	if id == 0 {
		id = 1
	}

	electionTick := 10
	if rc.ElectionTick != 0 {
		electionTick = rc.ElectionTick
	}
	heartbeatTick := 1
	if rc.HeartbeatTick != 0 {
		heartbeatTick = rc.HeartbeatTick
	}
	if heartbeatTick >= electionTick {
		return nil, fmt.Errorf("raft heartbeat-tick (%d) must be lower than election-tick (%d)", heartbeatTick, electionTick)
	}
	maxSizePerMsg := uint64(1024 * 1024)
	if rc.MaxSizePerMsg != 0 {
		maxSizePerMsg = rc.MaxSizePerMsg
	}
	maxInflight := 256
	if rc.MaxInflight != 0 {
		maxInflight = rc.MaxInflight
	}

	storage := etcdraft.NewMemoryStorage()
	c := &etcdraft.Config{
		ID:                        id,
		ElectionTick:              electionTick,
		HeartbeatTick:             heartbeatTick,
		Storage:                   storage,
		MaxSizePerMsg:             maxSizePerMsg,
		MaxInflightMsgs:           maxInflight,
		MaxUncommittedEntriesSize: 1 << 30,
		Logger:                    NewSlogRaftLogger(),
	}
	slog.Debug("starting new raft node",
		"id", id,
		"election_tick", electionTick,
		"heartbeat_tick", heartbeatTick,
	)
	raftNode := etcdraft.StartNode(c, []etcdraft.Peer{{ID: id}})

	return &nodeConfig{
		id:       id,
		storage:  storage,
		raftNode: raftNode,
	}, nil
}
