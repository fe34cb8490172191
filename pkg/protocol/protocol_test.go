package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shubham-shewale/stock-orderbook/pkg/protocol"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    protocol.Command
		wantErr error
	}{
		{"show\n", protocol.Command{Name: "show"}, nil},
		{"exit", protocol.Command{Name: "exit"}, nil},
		{"buy 1 30\n", protocol.Command{Name: "buy", ID: 1, Quantity: 30}, nil},
		{"  sell   2  5  ", protocol.Command{Name: "sell", ID: 2, Quantity: 5}, nil},
		{"buy 1 30 extra", protocol.Command{Name: "buy", ID: 1, Quantity: 30}, nil},
		{"buy 1 0", protocol.Command{Name: "buy", ID: 1, Quantity: 0}, nil},
		{"", protocol.Command{}, protocol.ErrEmptyCommand},
		{"   \n", protocol.Command{}, protocol.ErrEmptyCommand},
		{"buy 1", protocol.Command{Name: "buy"}, protocol.ErrInvalidArgs},
		{"sell x 1", protocol.Command{Name: "sell"}, protocol.ErrInvalidArgs},
		{"buy 1 many", protocol.Command{Name: "buy"}, protocol.ErrInvalidArgs},
		{"buy 1 -4", protocol.Command{Name: "buy"}, protocol.ErrInvalidArgs},
		{"list", protocol.Command{Name: "list"}, protocol.ErrUnknownCommand},
		{"SHOW", protocol.Command{Name: "SHOW"}, protocol.ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := protocol.Parse(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse(%q) err = %v, want %v", tt.line, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestErrorReply(t *testing.T) {
	cmd, err := protocol.Parse("fly 1 2")
	if got := protocol.ErrorReply(cmd, err); got != "Unknown command: fly" {
		t.Errorf("Unexpected reply %q", got)
	}

	cmd, err = protocol.Parse("sell 1")
	if got := protocol.ErrorReply(cmd, err); !strings.HasPrefix(got, "Invalid arguments") {
		t.Errorf("Unexpected reply %q", got)
	}

	cmd, err = protocol.Parse("")
	if got := protocol.ErrorReply(cmd, err); got != protocol.ReplyEmpty {
		t.Errorf("Unexpected reply %q", got)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := protocol.WriteFrame(&buf, "1 100 50\n2 200 10\n", 64); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if buf.Len() != 64 {
		t.Fatalf("Expected a 64 byte frame, got %d", buf.Len())
	}

	got, err := protocol.ReadFrame(&buf, 64)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got != "1 100 50\n2 200 10\n" {
		t.Errorf("Unexpected payload %q", got)
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := protocol.WriteFrame(&buf, strings.Repeat("x", 65), 64)
	if !errors.Is(err, protocol.ErrResponseTooLarge) {
		t.Fatalf("Expected ErrResponseTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Nothing should be written for an oversized response")
	}
}

func TestReadFrameShort(t *testing.T) {
	if _, err := protocol.ReadFrame(strings.NewReader("abc"), 64); err == nil {
		t.Error("Expected error for a truncated frame")
	}
}
