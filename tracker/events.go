package tracker

import "github.com/overlaymesh/trackerd/overlay"

// Command is a value sent on the controller command channel.
type Command interface{ isCommand() }

// AddSender registers a neighbor's outbound channel and triggers a fresh
// flood-discovery round.
type AddSender struct {
	ID      overlay.NodeId
	Channel chan overlay.Packet
}

func (AddSender) isCommand() {}

// RemoveSender drops a neighbor and triggers a fresh flood-discovery round.
type RemoveSender struct {
	ID overlay.NodeId
}

func (RemoveSender) isCommand() {}

// Crash tells the server to terminate at the next loop iteration.
type Crash struct{}

func (Crash) isCommand() {}

// SetPacketDropRate is accepted but unimplemented; it is only logged.
type SetPacketDropRate struct {
	Rate float64
}

func (SetPacketDropRate) isCommand() {}

// Event is a value sent on the controller event channel.
type Event interface{ isEvent() }

// PacketSent notifies the controller that a packet was handed to a
// neighbor's channel.
type PacketSent struct {
	NextHop overlay.NodeId
	Packet  overlay.Packet
}

func (PacketSent) isEvent() {}

// ControllerShortcut asks the controller to deliver packet on the engine's
// behalf, because the neighbor's channel could not accept it. Only used
// for non-fragment control packets.
type ControllerShortcut struct {
	NextHop overlay.NodeId
	Packet  overlay.Packet
}

func (ControllerShortcut) isEvent() {}
