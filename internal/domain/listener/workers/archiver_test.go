package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/repository/file"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	failFor string
}

func (u *fakeUploader) UploadSnapshot(ctx context.Context, accountID string, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if accountID == u.failFor {
		return errors.New("bucket unavailable")
	}
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.objects[accountID] = data
	return nil
}

func TestArchiverWorker_ArchiveAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := file.NewAccountStore(dir, zerolog.Nop())
	require.NoError(t, err)
	sink, err := file.NewMessageSink(dir, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Upsert(ctx, id, entities.AccountPatch{Groups: []int64{}})
		require.NoError(t, err)
	}
	msg := entities.CapturedMessage{Timestamp: entities.NewLogTime(time.Now()), Text: "x", ChatID: 1, MessageID: 1}
	_, err = sink.Append(ctx, "a", msg)
	require.NoError(t, err)
	_, err = sink.Append(ctx, "b", msg)
	require.NoError(t, err)

	uploader := &fakeUploader{failFor: "b"}
	w := NewArchiverWorker(store, sink, uploader, time.Hour, nil, zerolog.Nop())
	require.True(t, w.Enabled())

	assert.Equal(t, 1, w.ArchiveAll(ctx))
	require.Contains(t, uploader.objects, "a")
	assert.NotContains(t, uploader.objects, "c")

	var archived []entities.CapturedMessage
	require.NoError(t, json.Unmarshal(uploader.objects["a"], &archived))
	require.Len(t, archived, 1)
	assert.Equal(t, "x", archived[0].Text)
}

func TestArchiverWorker_DisabledIsNoop(t *testing.T) {
	w := NewArchiverWorker(nil, nil, nil, time.Hour, nil, zerolog.Nop())
	assert.False(t, w.Enabled())

	w.Start()
	w.Stop()
}

func TestArchiverWorker_StartStop(t *testing.T) {
	dir := t.TempDir()
	store, err := file.NewAccountStore(dir, zerolog.Nop())
	require.NoError(t, err)
	sink, err := file.NewMessageSink(dir, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	w := NewArchiverWorker(store, sink, &fakeUploader{}, 10*time.Millisecond, nil, zerolog.Nop())
	w.Start()
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
