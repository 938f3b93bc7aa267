// Command transcript replays a captured model output through the stream
// parser, fragment by fragment, and prints what a client would have seen.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
)

var (
	fragmentSize int
	withControl  bool
	showDeltas   bool
)

var rootCmd = &cobra.Command{
	Use:   "transcript <file>",
	Short: "Replay raw model output through the tag stream parser",
	Long: `Split a captured model response into fixed-size fragments and feed it
through the same parser the server uses. Hidden reasoning is removed and, with
--control, the leading control block is decoded and printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.Flags().IntVarP(&fragmentSize, "fragment", "f", 7, "fragment size in bytes")
	rootCmd.Flags().BoolVarP(&withControl, "control", "c", false, "expect a leading control block")
	rootCmd.Flags().BoolVarP(&showDeltas, "deltas", "d", false, "print every emitted delta on its own line")
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	if fragmentSize < 1 {
		return fmt.Errorf("fragment size must be positive, got %d", fragmentSize)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	src := &fragmentReader{data: string(raw), size: fragmentSize}
	var body tagstream.Reader
	if withControl {
		mapping, rest, err := tagstream.ExtractControl(src)
		if err != nil {
			return fmt.Errorf("control block rejected: %w", err)
		}
		encoded, err := json.MarshalIndent(mapping, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "control:\n%s\n", encoded)
		body = rest
	} else {
		body = tagstream.FilterHidden(src)
	}
	defer body.Close()

	out := cmd.OutOrStdout()
	deltas := 0
	for {
		chunk, err := body.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		deltas++
		if showDeltas {
			fmt.Fprintf(out, "[%d] %q\n", deltas, chunk)
		} else {
			fmt.Fprint(out, chunk)
		}
	}
	if !showDeltas {
		fmt.Fprintln(out)
	}
	log.Printf("%d fragments in, %d deltas out", src.sent, deltas)
	return nil
}

// fragmentReader yields data in slices of at most size bytes.
type fragmentReader struct {
	data string
	size int
	sent int
}

func (r *fragmentReader) Recv() (string, error) {
	if r.data == "" {
		return "", io.EOF
	}
	n := min(r.size, len(r.data))
	out := r.data[:n]
	r.data = r.data[n:]
	r.sent++
	return out, nil
}

func (r *fragmentReader) Close() {}
