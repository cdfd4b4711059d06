package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/daviddao/crane_viewer/internal/store"
	"github.com/daviddao/crane_viewer/internal/wire"
)

const importBatch = 500

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl|->",
		Short: "Append recorded events to the database",
		Long: `Reads one event per line as {"topic": ..., "message": ..., "receiveTime": {"sec": ..., "nsec": ...}}
and appends them to the database under a new session id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			s, path, err := opts.openStore(true)
			if err != nil {
				return err
			}
			defer s.Close()

			session := store.NewSession()
			n, err := importEvents(cmd.Context(), s, session, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d events (session %s) into %s\n", n, session, path)
			return nil
		},
	}
}

// importEvents appends the JSONL events in r in batches. Lines are numbered
// from 1 in errors; a failed batch is rolled back whole.
func importEvents(ctx context.Context, s *store.Store, session string, r io.Reader) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var (
		batch []wire.Event
		total int
		line  int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.Append(ctx, session, batch...); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev wire.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.Topic == "" {
			return total, fmt.Errorf("line %d: missing topic", line)
		}
		batch = append(batch, ev)
		if len(batch) >= importBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("line %d: %w", line+1, err)
	}
	return total, flush()
}
