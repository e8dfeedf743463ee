package server

import (
	"fmt"
)

// Command tags a bridge message with the operation it requests. Dispatch is
// exhaustive over this set; anything else is rejected before reaching a
// service.
type Command string

const (
	CommandLogin         Command = "login"
	CommandLogout        Command = "logout"
	CommandListProjects  Command = "listProjects"
	CommandSaveProject   Command = "saveProject"
	CommandUpdateProject Command = "updateProject"
	CommandDeleteProject Command = "deleteProject"
	CommandSyncProject   Command = "syncProject"
)

// Message is one command from the host editor. ProjectID and Name are only
// meaningful for the commands that declare them.
type Message struct {
	Command   Command `json:"command"`
	ProjectID string  `json:"projectId,omitempty"`
	Name      string  `json:"name,omitempty"`
}

// Validate rejects unknown commands and missing required arguments up front.
func (m Message) Validate() error {
	switch m.Command {
	case CommandLogin, CommandLogout, CommandListProjects:
		return nil
	case CommandSaveProject:
		if m.Name == "" {
			return fmt.Errorf("command %q requires a name", m.Command)
		}
		return nil
	case CommandUpdateProject:
		if m.ProjectID == "" {
			return fmt.Errorf("command %q requires a projectId", m.Command)
		}
		if m.Name == "" {
			return fmt.Errorf("command %q requires a name", m.Command)
		}
		return nil
	case CommandDeleteProject, CommandSyncProject:
		if m.ProjectID == "" {
			return fmt.Errorf("command %q requires a projectId", m.Command)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", m.Command)
	}
}
