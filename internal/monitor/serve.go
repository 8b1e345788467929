package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/CZERTAINLY/treasure-hub/internal/model"
)

// Serve runs a monitor writing to the inherited descriptor named by fd.
// SIGUSR1 announces a request, SIGTERM and SIGINT terminate. Handlers are
// installed before the startup frame is written.
func Serve(ctx context.Context, cfg model.Config, fd string) error {
	n, err := strconv.Atoi(fd)
	if err != nil || n < 3 {
		return fmt.Errorf("invalid result channel descriptor %q", fd)
	}
	channel := os.NewFile(uintptr(n), "result-channel")
	if channel == nil {
		return fmt.Errorf("invalid result channel descriptor %q", fd)
	}

	requests := make(chan os.Signal, 1)
	signal.Notify(requests, unix.SIGUSR1)
	defer signal.Stop(requests)
	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, unix.SIGTERM, unix.SIGINT)
	defer signal.Stop(terminate)

	return FromConfig(cfg, channel).Run(ctx, requests, terminate)
}
