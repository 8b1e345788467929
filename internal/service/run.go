package service

import (
	"context"
	"io"

	"github.com/CZERTAINLY/treasure-hub/internal/model"
)

// Run implements the interactive hub on in and out.
func Run(ctx context.Context, cfg model.Config, helpers Config, in io.Reader, out io.Writer, interactive bool) error {
	sup := NewSupervisor(cfg, helpers, out)
	return NewSession(sup, in, interactive).Run(ctx)
}
