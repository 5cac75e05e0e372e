package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

const defaultPostgresImage = "postgres:16-alpine"

// startPostgresContainer runs a disposable postgres through the docker CLI on
// a host port chosen by docker. POSTGRES_IMAGE overrides the image.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	image := os.Getenv("POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	out, err := docker(ctx, "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=frontdesk",
		"-e", "POSTGRES_PASSWORD=frontdesk",
		"-e", "POSTGRES_DB=frontdesk",
		"--label", "frontdesk.integration=true",
		image,
	)
	if err != nil {
		return "", nil, err
	}
	id := out
	cleanup := func() { _, _ = docker(context.Background(), "stop", id) }

	// "docker port" prints e.g. "127.0.0.1:49153".
	addr, err := docker(ctx, "port", id, "5432/tcp")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	addr = strings.SplitN(addr, "\n", 2)[0]

	connStr := fmt.Sprintf("postgres://frontdesk:frontdesk@%s/frontdesk?sslmode=disable", addr)
	if err := waitForPostgres(ctx, connStr, 30*time.Second); err != nil {
		cleanup()
		return "", nil, err
	}
	return connStr, cleanup, nil
}

func docker(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// waitForPostgres polls until the server answers a ping. The entrypoint
// restarts postgres once after init, so a single success is not trusted
// until it repeats.
func waitForPostgres(ctx context.Context, connStr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok := 0
	var lastErr error
	for {
		pool, err := db.NewPool(ctx, connStr, "", 1, 0)
		if err == nil {
			pool.Close()
			ok++
			if ok == 2 {
				return nil
			}
		} else {
			ok = 0
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", timeout, lastErr)
		case <-time.After(500 * time.Millisecond):
		}
	}
}
