package tui

import "strings"

// CommandKind identifies a parsed line of input.
type CommandKind int

const (
	CmdChat CommandKind = iota
	CmdQuit
	CmdClose
	CmdRemember
	CmdProject
	CmdNote
	CmdArchives
	CmdLoad
	CmdStatus
	CmdHelp
	CmdUnknown
)

// Command is one parsed line of user input. Args holds the remaining
// fields; Text is the raw argument string after the command word.
type Command struct {
	Kind CommandKind
	Name string
	Args []string
	Text string
}

// ParseCommand classifies a line. Anything that does not start with a slash
// is chat, except the bare words exit and quit.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "exit", "quit":
		return Command{Kind: CmdQuit, Name: strings.ToLower(line)}
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdChat, Text: line}
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)
	cmd := Command{Name: name, Args: strings.Fields(rest), Text: rest}

	switch name {
	case "quit", "exit", "q":
		cmd.Kind = CmdQuit
	case "close":
		cmd.Kind = CmdClose
	case "remember":
		cmd.Kind = CmdRemember
	case "project":
		cmd.Kind = CmdProject
	case "note":
		cmd.Kind = CmdNote
		if len(cmd.Args) > 0 {
			cmd.Text = strings.TrimSpace(strings.TrimPrefix(rest, cmd.Args[0]))
		}
	case "archives":
		cmd.Kind = CmdArchives
	case "load":
		cmd.Kind = CmdLoad
	case "status":
		cmd.Kind = CmdStatus
	case "help", "?":
		cmd.Kind = CmdHelp
	default:
		cmd.Kind = CmdUnknown
	}
	return cmd
}

const helpText = `Commands:
  /remember <text>        save a long-term memory
  /project <name>         create a project
  /note <project> <text>  add a note to a project
  /close                  archive this conversation and start fresh
  /archives               list archived conversations
  /load <id>              reload an archived conversation
  /status                 server health
  /quit                   leave (also: exit, quit)`

// isYes reports whether a reply confirms a pending prompt.
func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "aye", "ja":
		return true
	}
	return false
}
