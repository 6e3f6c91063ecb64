// Package ipc is the unix-socket control channel between lilibet processes.
//
// Messages are single JSON objects terminated by a newline.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Control commands understood by a recording owner.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func readMessage(r *bufio.Reader, v any) error {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
