// Package robot defines the status and location model shared by the coordinator,
// the observer registry and the HTTP surfaces.
package robot

import (
	"encoding/json"
	"strings"
)

// Status represents the single process-wide robot state
type Status string

const (
	// StatusIdle means the robot is free to accept a new task
	StatusIdle Status = "idle"

	// StatusBusy means a move request is in flight
	StatusBusy Status = "busy"
)

const (
	// DefaultRoom is stored when a move request carries no room label
	DefaultRoom = "Unknown"

	// InitialRoom is the room the robot reports before any request arrives
	InitialRoom = "Lobby"

	// EventStatus is the push event name carrying a StatusUpdate
	EventStatus = "robot_status"
)

// Location is the last requested position of the robot.
// Values are immutable; each move request produces a new Location.
type Location struct {
	Floor int     `json:"floor" yaml:"floor"`
	Room  string  `json:"room" yaml:"room"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// InitialLocation returns the location reported at process start
func InitialLocation() Location {
	return Location{Floor: 1, Room: InitialRoom}
}

// MoveRequest is a command to send the robot to a planar position on a floor
type MoveRequest struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
	Yaw   float64 `json:"yaw"`
	Room  string  `json:"room,omitempty"`
}

// Location converts the request into the location stored by the coordinator.
// A blank room becomes DefaultRoom.
func (r MoveRequest) Location() Location {
	room := strings.TrimSpace(r.Room)
	if room == "" {
		room = DefaultRoom
	}
	return Location{
		Floor: r.Floor,
		Room:  room,
		X:     r.X,
		Y:     r.Y,
		Yaw:   r.Yaw,
	}
}

// Payload encodes the request as the string data published to the actuator
func (r MoveRequest) Payload() ([]byte, error) {
	return json.Marshal(r)
}

// StatusUpdate is the status/location pair delivered to observers
type StatusUpdate struct {
	Status          Status   `json:"status"`
	CurrentLocation Location `json:"currentLocation"`
}

// IsBusy reports whether the update describes an in-flight request
func (u StatusUpdate) IsBusy() bool {
	return u.Status == StatusBusy
}
