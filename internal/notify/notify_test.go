package notify

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/releasegrid/internal/config"
	"github.com/specialistvlad/releasegrid/internal/ctxlog"
	"github.com/specialistvlad/releasegrid/internal/node"
)

func TestFromNode(t *testing.T) {
	job := &config.Job{Name: "build"}
	entry := config.NewMatrixEntry([]string{"target"}, map[string]cty.Value{"target": cty.StringVal("x86_64")})
	n := node.New(job, entry)
	n.SetState(node.Failed)
	n.Error = errors.New("linker failed")

	ev := FromNode("run-1", "wheels", n)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "build[target=x86_64]", ev.Instance)
	assert.Equal(t, "target=x86_64", ev.Matrix)
	assert.Equal(t, "failed", ev.State)
	assert.Equal(t, "linker failed", ev.Error)
	assert.False(t, ev.Time.IsZero())
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	n.Notify(context.Background(), Event{})
	assert.NoError(t, n.Close())
}

func TestDialSocketIO_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	_, err := DialSocketIO(ctx, "not a url", SocketIOOptions{})
	assert.Error(t, err)

	// Reserve a port and close it so nothing is listening.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	start := time.Now()
	_, err = DialSocketIO(ctx, "http://"+addr+"/socket.io/", SocketIOOptions{ConnectTimeout: 500 * time.Millisecond})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
