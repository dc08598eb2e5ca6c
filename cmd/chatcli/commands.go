package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errUsage = errors.New("usage error")

// command is one parsed input line.
type command struct {
	Name string
	ID   int
	Arg  string
}

// usage lists the commands accepted on stdin.
const usage = `commands:
  <text>              send a text message
  /file <path> [text] send a file or image with an optional caption
  /search <query>     search loaded messages
  /next, /prev        move between search results
  /clear              clear the search
  /react <id> <emoji> toggle a reaction
  /pin <id>, /unpin <id>
  /pinned             list pinned messages
  /edit <id> <text>   edit a message
  /delete <id>        delete a message
  /reconnect          resume polling after a disconnect
  /help, /quit`

// parseCommand turns an input line into a command. Lines that do not start
// with a slash are text sends.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errUsage
	}
	if !strings.HasPrefix(line, "/") {
		return command{Name: "send", Arg: line}, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "next", "prev", "clear", "pinned", "reconnect", "help", "quit":
		return command{Name: name}, nil
	case "search":
		if rest == "" {
			return command{}, fmt.Errorf("%w: /search <query>", errUsage)
		}
		return command{Name: name, Arg: rest}, nil
	case "file":
		if rest == "" {
			return command{}, fmt.Errorf("%w: /file <path> [caption]", errUsage)
		}
		path, caption, _ := strings.Cut(rest, " ")
		return command{Name: name, Arg: path + "\x00" + strings.TrimSpace(caption)}, nil
	case "pin", "unpin", "delete":
		id, err := strconv.Atoi(rest)
		if err != nil {
			return command{}, fmt.Errorf("%w: /%s <message id>", errUsage, name)
		}
		return command{Name: name, ID: id}, nil
	case "react", "edit":
		idText, arg, _ := strings.Cut(rest, " ")
		id, err := strconv.Atoi(idText)
		arg = strings.TrimSpace(arg)
		if err != nil || arg == "" {
			return command{}, fmt.Errorf("%w: /%s <message id> <value>", errUsage, name)
		}
		return command{Name: name, ID: id, Arg: arg}, nil
	default:
		return command{}, fmt.Errorf("%w: unknown command /%s", errUsage, name)
	}
}

// fileArgs splits the argument of a /file command.
func (c command) fileArgs() (path, caption string) {
	path, caption, _ = strings.Cut(c.Arg, "\x00")
	return path, caption
}
