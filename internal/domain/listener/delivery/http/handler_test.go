package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/backendtest"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/dto"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/repository/file"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/resolver"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/usecase/business"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/workers"
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/httputil"
)

const testAccount = "+10000000001"

type testAPI struct {
	handler fasthttp.RequestHandler
	store   *file.AccountStore
	sink    *file.MessageSink
	backend *backendtest.Backend
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	logger := zerolog.Nop()
	cfg := &config.ListenerConfig{GracePeriod: time.Second, CloseTimeout: time.Second, ResolveRate: 1000}

	store, err := file.NewAccountStore(dir, logger)
	require.NoError(t, err)
	sink, err := file.NewMessageSink(dir, nil, nil, logger)
	require.NoError(t, err)

	backend := backendtest.NewBackend()
	backend.Dialogs = []entities.Chat{{RawID: 111, Kind: entities.ChatKindChannel}}

	factory := workers.NewFactory(backend, resolver.NewResolver(cfg, nil, logger), sink, cfg, nil, logger)
	uc := business.NewUseCase(store, sink, factory, cfg, nil, logger)
	t.Cleanup(func() { uc.Shutdown(context.Background()) })

	r := router.New()
	NewRouter(NewListenerHandler(uc, pkgerrors.NewMapper(logger), logger)).RegisterRoutes(r)

	return &testAPI{handler: r.Handler, store: store, sink: sink, backend: backend}
}

func (a *testAPI) do(method, uri, body string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.SetBodyString(body)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	a.handler(ctx)
	return ctx
}

func (a *testAPI) withSession(t *testing.T) {
	t.Helper()
	token := "session-token"
	_, err := a.store.Upsert(context.Background(), testAccount, entities.AccountPatch{SessionToken: &token})
	require.NoError(t, err)
}

func decode[T any](t *testing.T, ctx *fasthttp.RequestCtx) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v), string(ctx.Response.Body()))
	return v
}

func TestStartListener_NoSession(t *testing.T) {
	api := newTestAPI(t)

	ctx := api.do(fasthttp.MethodPost, "/start_listener", `{"accountId":"+10000000001","groups":[111]}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.NotEmpty(t, decode[httputil.ErrorResponse](t, ctx).Error)
}

func TestStartListener_BadBody(t *testing.T) {
	api := newTestAPI(t)

	ctx := api.do(fasthttp.MethodPost, "/start_listener", `{"groups":`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = api.do(fasthttp.MethodPost, "/start_listener", `{"groups":[1]}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "accountId is required", decode[httputil.ErrorResponse](t, ctx).Error)
}

func TestStartStopFlow(t *testing.T) {
	api := newTestAPI(t)
	api.withSession(t)

	ctx := api.do(fasthttp.MethodPost, "/start_listener", `{"accountId":"+10000000001","groups":[-1000000000111]}`)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, entities.StatusStarted, decode[httputil.StatusResponse](t, ctx).Status)

	// legacy clients address the account as phone
	ctx = api.do(fasthttp.MethodPost, "/start_listener", `{"phone":"+10000000001","groups":["-1000000000111"]}`)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, entities.StatusAlreadyRunning, decode[httputil.StatusResponse](t, ctx).Status)

	ctx = api.do(fasthttp.MethodGet, "/listener_status/+10000000001", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	st := decode[dto.ListenerStatusResponse](t, ctx)
	assert.True(t, st.Running)
	assert.NotEmpty(t, st.TaskID)
	assert.Equal(t, []entities.GroupRef{{ID: -1000000000111}}, st.Groups)

	ctx = api.do(fasthttp.MethodPost, "/stop_listener/+10000000001", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, entities.StatusStopped, decode[httputil.StatusResponse](t, ctx).Status)

	ctx = api.do(fasthttp.MethodPost, "/stop_listener/+10000000001", "")
	assert.Equal(t, entities.StatusNotRunning, decode[httputil.StatusResponse](t, ctx).Status)
}

func TestGetData(t *testing.T) {
	api := newTestAPI(t)

	ctx := api.do(fasthttp.MethodGet, "/get_data/+10000000001", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `[]`, string(ctx.Response.Body()))

	ts := entities.NewLogTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	_, err := api.sink.Append(context.Background(), testAccount, entities.CapturedMessage{Timestamp: ts, Text: "hi", ChatID: -1000000000111, MessageID: 1})
	require.NoError(t, err)

	ctx = api.do(fasthttp.MethodGet, "/get_data/+10000000001", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `[{"timestamp":"2024-01-02T03:04:05","text":"hi","chat_id":-1000000000111,"message_id":1}]`, string(ctx.Response.Body()))
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
}

func TestGetData_InvalidAccount(t *testing.T) {
	api := newTestAPI(t)

	ctx := api.do(fasthttp.MethodGet, "/get_data/bad%20id", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}
