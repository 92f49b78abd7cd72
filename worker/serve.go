package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Serve reads JSON messages from r, dispatches them in order and writes
// one JSON reply per message to w. It returns nil at end of input.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode message: %w", err)
		}
		reply := d.Dispatch(ctx, msg)
		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("encode reply %d: %w", reply.ID, err)
		}
		Logger().Debug("message served", zap.Uint64("id", reply.ID), zap.Bool("failed", reply.Error != nil))
	}
}
