// Package cli parses lilibet's command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecord   Command = "record"
	CommandStop     Command = "stop"
	CommandCancel   Command = "cancel"
	CommandStatus   Command = "status"
	CommandChat     Command = "chat"
	CommandSpeak    Command = "speak"
	CommandLogin    Command = "login"
	CommandRegister Command = "register"
	CommandLogout   Command = "logout"
	CommandHistory  Command = "history"
	CommandSubjects Command = "subjects"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

type flagKind int

const (
	flagValue flagKind = iota + 1
	flagBool
)

type commandSpec struct {
	flags map[string]flagKind
	// text means remaining positional args are joined into Parsed.Text.
	text bool
}

var commandSpecs = map[Command]commandSpec{
	CommandRecord:   {},
	CommandStop:     {},
	CommandCancel:   {},
	CommandStatus:   {},
	CommandChat:     {flags: map[string]flagKind{"--subject": flagValue, "--model": flagValue, "--mute": flagBool}},
	CommandSpeak:    {text: true},
	CommandLogin:    {flags: map[string]flagKind{"--email": flagValue, "--password": flagValue}},
	CommandRegister: {flags: map[string]flagKind{"--email": flagValue, "--password": flagValue, "--name": flagValue, "--age-group": flagValue}},
	CommandLogout:   {},
	CommandHistory:  {flags: map[string]flagKind{"--subject": flagValue}},
	CommandSubjects: {},
	CommandDevices:  {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// Parsed is the result of one argv parse.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	Subject     string
	Model       string
	Muted       bool
	Email       string
	Password    string
	DisplayName string
	AgeGroup    string
	Text        string
}

// Parse reads global flags, one command, and that command's own flags.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			spec, ok := commandSpecs[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandArgs(&parsed, spec, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCommandArgs(parsed *Parsed, spec commandSpec, args []string) error {
	var text []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" && spec.text {
			text = append(text, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			if !spec.text {
				return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			text = append(text, arg)
			continue
		}

		name, value, inline := strings.Cut(arg, "=")
		kind, ok := spec.flags[name]
		if !ok {
			return fmt.Errorf("unknown flag for %s: %s", parsed.Command, name)
		}
		if kind == flagBool {
			if inline {
				return fmt.Errorf("%s does not take a value", name)
			}
			setBool(parsed, name)
			continue
		}
		if !inline {
			i++
			if i >= len(args) {
				return fmt.Errorf("%s requires a value", name)
			}
			value = args[i]
		}
		setValue(parsed, name, value)
	}

	if spec.text {
		parsed.Text = strings.TrimSpace(strings.Join(text, " "))
		if parsed.Text == "" {
			return fmt.Errorf("%s requires text", parsed.Command)
		}
	}
	return nil
}

func setBool(parsed *Parsed, name string) {
	if name == "--mute" {
		parsed.Muted = true
	}
}

func setValue(parsed *Parsed, name string, value string) {
	switch name {
	case "--subject":
		parsed.Subject = value
	case "--model":
		parsed.Model = value
	case "--email":
		parsed.Email = value
	case "--password":
		parsed.Password = value
	case "--name":
		parsed.DisplayName = value
	case "--age-group":
		parsed.AgeGroup = value
	}
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [command flags]

Commands:
  record      Start dictation, or stop the running dictation and print the transcript
  stop        Stop the running dictation and print the transcript
  cancel      Discard the running dictation
  status      Print the dictation state
  chat        Chat with the tutor (--subject S, --model M, --mute)
  speak TEXT  Speak text with the configured voice
  login       Sign in (--email, --password) and print the token
  register    Create an account (--email, --password, --name, --age-group)
  logout      Sign out of the current token
  history     List saved conversations (--subject S)
  subjects    List tutoring subjects
  devices     List audio input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Chat commands:
  /record     Dictate a message; press Enter to stop
  /mute       Toggle spoken replies
  /subject S  Switch subject
  /history    List saved conversations for this subject
  /resume ID  Continue a saved conversation
  /quit       Leave the chat

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/lilibet/config.jsonc)
  -h, --help      Show help
  --version       Show version

Environment:
  LILIBET_TOKEN     Bearer token for signed-in requests (also read from .env)
  LILIBET_BASE_URL  Backend base URL override
  LILIBET_DEV       Use the local development backend when true
`, binaryName)
}
