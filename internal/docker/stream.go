package docker

import (
	"encoding/json"
	"io"
	"os"

	"github.com/docker/docker/pkg/jsonmessage"
	"golang.org/x/term"
)

// streamResult is what a progress stream reports besides the progress itself.
type streamResult struct {
	// ImageID is taken from the build's aux message, when present.
	ImageID string

	// Digest is taken from the push's aux message, when present.
	Digest string
}

// auxPayload covers the aux messages of both build ({"ID": ...}) and
// push ({"Tag": ..., "Digest": ..., "Size": ...}).
type auxPayload struct {
	ID     string `json:"ID"`
	Digest string `json:"Digest"`
}

// displayStream renders a JSON message stream from the daemon onto out.
// When out is a terminal, progress bars are redrawn in place. A message
// carrying an error terminates the stream and is returned as an error.
// A nil out discards the progress.
func displayStream(in io.Reader, out io.Writer) (streamResult, error) {
	if out == nil {
		out = io.Discard
	}

	var fd uintptr
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		fd = f.Fd()
		isTerminal = term.IsTerminal(int(fd))
	}

	var result streamResult
	aux := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var payload auxPayload
		if err := json.Unmarshal(*msg.Aux, &payload); err != nil {
			return
		}
		if payload.ID != "" {
			result.ImageID = payload.ID
		}
		if payload.Digest != "" {
			result.Digest = payload.Digest
		}
	}

	err := jsonmessage.DisplayJSONMessagesStream(in, out, fd, isTerminal, aux)
	return result, err
}
