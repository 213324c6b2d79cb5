package mentor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	midsec "PMentor/middleware/security"
	"PMentor/module/mentor"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/service"
	"PMentor/module/mentor/store"
	"PMentor/service/relay"
	"PMentor/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	ada = "11111111-1111-4111-8111-111111111111"
	bea = "22222222-2222-4222-8222-222222222222"
)

type tokens map[string]model.Identity

func (t tokens) Verify(token string) (model.Identity, error) {
	id, ok := t[token]
	if !ok {
		return model.Identity{}, errs.ErrAuthentication.Wrap()
	}
	return id, nil
}

type quiet struct{ chats int }

func (q *quiet) RelayChatMessage(context.Context, *model.Message) relay.Outcome { q.chats++; return nil }
func (q *quiet) RelayReadReceipt(context.Context, *model.Message, string) relay.Outcome {
	return nil
}
func (q *quiet) RelayConnectionNotification(context.Context, *model.Connection) relay.Outcome {
	return nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*gin.Engine, *quiet) {
	gin.SetMode(gin.TestMode)
	midsec.Configure(tokens{
		"ada": {UserID: ada, Role: model.RoleParticipant},
		"bea": {UserID: bea, Role: model.RoleMentor},
	})
	t.Cleanup(func() { midsec.Configure(nil) })

	mem := store.NewMemory()
	mem.PutProfile(model.Profile{UserID: ada, Name: "Ada", Role: model.RoleParticipant})
	mem.PutProfile(model.Profile{UserID: bea, Name: "Bea", Role: model.RoleMentor})
	q := &quiet{}
	h := mentor.NewHandler(
		service.NewMessageService(mem, mem, q),
		service.NewConnectionService(mem.Connections(), mem, q),
	)
	r := gin.New()
	h.Register(r.Group("/api"))
	return r, q
}

func call(r http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestMessageRoutes(t *testing.T) {
	r, q := setup(t)

	t.Run("should send, read and list a conversation", func(t *testing.T) {
		req := require.New(t)
		w, env := call(r, http.MethodPost, "/api/messages", "ada", `{"receiverId":"`+bea+`","content":"hello"}`)
		req.Equal(http.StatusOK, w.Code)
		var sent model.MessageView
		req.NoError(json.Unmarshal(env.Data, &sent))
		req.Equal("hello", sent.Content)
		req.False(sent.IsRead)
		req.Equal(1, q.chats)

		w, _ = call(r, http.MethodPut, "/api/messages/"+sent.ID+"/read", "ada", "")
		req.Equal(http.StatusNotFound, w.Code, "the sender cannot mark read")

		w, env = call(r, http.MethodPut, "/api/messages/"+sent.ID+"/read", "bea", "")
		req.Equal(http.StatusOK, w.Code)
		var read model.MessageView
		req.NoError(json.Unmarshal(env.Data, &read))
		req.True(read.IsRead)

		w, env = call(r, http.MethodGet, "/api/messages/thread/"+ada, "bea", "")
		req.Equal(http.StatusOK, w.Code)
		var list []model.MessageView
		req.NoError(json.Unmarshal(env.Data, &list))
		req.Len(list, 1)
	})

	t.Run("should map errors to statuses", func(t *testing.T) {
		req := require.New(t)
		w, _ := call(r, http.MethodPost, "/api/messages", "", `{}`)
		req.Equal(http.StatusUnauthorized, w.Code)

		w, env := call(r, http.MethodPost, "/api/messages", "ada", `{"receiverId":"x"}`)
		req.Equal(http.StatusBadRequest, w.Code)
		req.Equal(errs.ArgsError, env.Code)

		w, _ = call(r, http.MethodPost, "/api/messages", "ada", `not json`)
		req.Equal(http.StatusBadRequest, w.Code)
	})
}

func TestConnectionRoutes(t *testing.T) {
	req := require.New(t)
	r, _ := setup(t)

	w, env := call(r, http.MethodPost, "/api/connections", "ada", `{"targetId":"`+bea+`","type":"MENTORSHIP"}`)
	req.Equal(http.StatusOK, w.Code)
	var created model.ConnectionView
	req.NoError(json.Unmarshal(env.Data, &created))
	req.Equal(model.StatusPending, created.Status)

	w, _ = call(r, http.MethodPost, "/api/connections", "ada", `{"targetId":"`+bea+`","type":"MENTORSHIP"}`)
	req.Equal(http.StatusConflict, w.Code)

	w, env = call(r, http.MethodGet, "/api/connections/pending", "bea", "")
	req.Equal(http.StatusOK, w.Code)
	var pending []model.ConnectionView
	req.NoError(json.Unmarshal(env.Data, &pending))
	req.Len(pending, 1)

	w, _ = call(r, http.MethodPut, "/api/connections/"+created.ID, "ada", `{"status":"ACCEPTED"}`)
	req.Equal(http.StatusForbidden, w.Code)

	w, _ = call(r, http.MethodPut, "/api/connections/"+created.ID, "bea", `{"status":"ACCEPTED"}`)
	req.Equal(http.StatusOK, w.Code)

	w, env = call(r, http.MethodGet, "/api/connections/accepted", "ada", "")
	req.Equal(http.StatusOK, w.Code)
	var accepted []model.ConnectionView
	req.NoError(json.Unmarshal(env.Data, &accepted))
	req.Len(accepted, 1)
	req.Equal("Bea", *accepted[0].TargetName)
}
