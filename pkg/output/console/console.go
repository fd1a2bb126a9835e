package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/output"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

// NewConsoleWriter writes to w instead of standard output.
func NewConsoleWriter(w io.Writer) output.Output { return &ConsoleOutput{w: w} }

func (c *ConsoleOutput) Publish(events []output.Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintf(c.w, "%s type=%s pin=%d value=%d\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Pin, e.Value); err != nil {
			return fmt.Errorf("console write: %w", err)
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
