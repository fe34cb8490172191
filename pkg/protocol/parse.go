package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid arguments")
)

// Parse splits one client line into a command. Tokens after the ones a
// command needs are ignored.
func Parse(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, ErrEmptyCommand
	}

	cmd := Command{Name: parts[0]}
	switch cmd.Name {
	case CmdShow, CmdExit:
		return cmd, nil

	case CmdBuy, CmdSell: // buy|sell id quantity
		if len(parts) < 3 {
			return cmd, fmt.Errorf("%s: %w", cmd.Name, ErrInvalidArgs)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return cmd, fmt.Errorf("%s id %q: %w", cmd.Name, parts[1], ErrInvalidArgs)
		}
		qty, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || qty < 0 {
			return cmd, fmt.Errorf("%s quantity %q: %w", cmd.Name, parts[2], ErrInvalidArgs)
		}
		cmd.ID = id
		cmd.Quantity = qty
		return cmd, nil

	default:
		return cmd, fmt.Errorf("%q: %w", cmd.Name, ErrUnknownCommand)
	}
}

// ErrorReply turns a Parse error into the text sent back to the client.
func ErrorReply(cmd Command, err error) string {
	switch {
	case errors.Is(err, ErrEmptyCommand):
		return ReplyEmpty
	case errors.Is(err, ErrUnknownCommand):
		return "Unknown command: " + cmd.Name
	case errors.Is(err, ErrInvalidArgs):
		return "Invalid arguments: usage " + cmd.Name + " <id> <quantity>"
	default:
		return err.Error()
	}
}
