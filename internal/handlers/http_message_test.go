package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/models"
)

// TestSendMessage текст берется из тела или из query
func TestSendMessage(t *testing.T) {
	s := newTestServer(t)
	owner := s.store.AddUser("owner")
	room := s.createRoom(t, owner.ID, "Lobby")
	base := "/room/" + room.ID.String() + "/message"

	w := s.do(t, owner.ID, http.MethodPost, base, `{"text":"from body"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("body post = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, owner.ID, http.MethodPost, base+"?text="+url.QueryEscape("from query"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("query post = %d %s", w.Code, w.Body.String())
	}

	var msg models.Message
	json.Unmarshal(w.Body.Bytes(), &msg)
	if msg.Text != "from query" || msg.Author == nil || msg.Author.Nick != "owner" {
		t.Errorf("response = %s", w.Body.String())
	}

	stored := s.store.Messages(room.ID)
	if len(stored) != 2 || stored[0].Text != "from body" {
		t.Errorf("stored %d messages", len(stored))
	}
}

// TestSendMessageErrors клиентские ошибки отправки сообщения
func TestSendMessageErrors(t *testing.T) {
	s := newTestServer(t)
	owner := s.store.AddUser("owner")
	stranger := s.store.AddUser("stranger")
	room := s.createRoom(t, owner.ID, "Lobby")
	base := "/room/" + room.ID.String() + "/message"

	w := s.do(t, stranger.ID, http.MethodPost, base, `{"text":"hi"}`)
	if w.Code != http.StatusForbidden || errorBody(t, w) != "Must be a member of this room" {
		t.Errorf("non-member = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, owner.ID, http.MethodPost, base, `{"text":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank text = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, owner.ID, http.MethodPost, base, `{"text":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d %s", w.Code, w.Body.String())
	}
}

// TestGetRoomMessages параметры страниц
func TestGetRoomMessages(t *testing.T) {
	s := newTestServer(t)
	owner := s.store.AddUser("owner")
	room := s.createRoom(t, owner.ID, "Lobby")
	base := "/room/" + room.ID.String() + "/messages"

	for _, text := range []string{"one", "two", "three"} {
		s.do(t, owner.ID, http.MethodPost, "/room/"+room.ID.String()+"/message", `{"text":"`+text+`"}`)
	}

	w := s.do(t, owner.ID, http.MethodGet, base+"?skip=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var page []models.Message
	json.Unmarshal(w.Body.Bytes(), &page)
	if len(page) != 2 || page[0].Text != "two" || page[1].Text != "one" {
		t.Errorf("page = %s", w.Body.String())
	}

	if w := s.do(t, owner.ID, http.MethodGet, base+"?skip=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric skip = %d", w.Code)
	}
	if w := s.do(t, owner.ID, http.MethodGet, base+"?skip=-3", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative skip = %d", w.Code)
	}
}

// TestGetHistory разбор дат и полуоткрытый интервал
func TestGetHistory(t *testing.T) {
	s := newTestServer(t)
	owner := s.store.AddUser("owner")
	room := s.createRoom(t, owner.ID, "Lobby")
	base := "/room/" + room.ID.String() + "/history"

	s.do(t, owner.ID, http.MethodPost, "/room/"+room.ID.String()+"/message", `{"text":"first"}`)
	s.do(t, owner.ID, http.MethodPost, "/room/"+room.ID.String()+"/message", `{"text":"second"}`)
	stored := s.store.Messages(room.ID)

	start := strconv.FormatInt(stored[0].CreatedAt.UnixMilli(), 10)
	end := stored[1].CreatedAt.Format(time.RFC3339)

	w := s.do(t, owner.ID, http.MethodGet, base+"?startDate="+start+"&endDate="+url.QueryEscape(end), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	var got []models.Message
	json.Unmarshal(w.Body.Bytes(), &got)
	if len(got) != 1 || got[0].Text != "first" {
		t.Errorf("history = %s", w.Body.String())
	}

	if w := s.do(t, owner.ID, http.MethodGet, base+"?endDate="+start, ""); w.Code != http.StatusBadRequest || errorBody(t, w) != "invalid startDate" {
		t.Errorf("missing start = %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, owner.ID, http.MethodGet, base+"?startDate="+start+"&endDate=yesterday", ""); w.Code != http.StatusBadRequest || errorBody(t, w) != "invalid endDate" {
		t.Errorf("bad end = %d %s", w.Code, w.Body.String())
	}
}

// TestGetMedia только сообщения со ссылками
func TestGetMedia(t *testing.T) {
	s := newTestServer(t)
	owner := s.store.AddUser("owner")
	room := s.createRoom(t, owner.ID, "Lobby")

	s.do(t, owner.ID, http.MethodPost, "/room/"+room.ID.String()+"/message", `{"text":"https://example.com/a.gif"}`)
	s.do(t, owner.ID, http.MethodPost, "/room/"+room.ID.String()+"/message", `{"text":"plain"}`)

	w := s.do(t, owner.ID, http.MethodGet, "/room/"+room.ID.String()+"/media", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var media []models.MediaMessage
	json.Unmarshal(w.Body.Bytes(), &media)
	if len(media) != 1 || media[0].Author == nil || *media[0].Author != owner.ID {
		t.Errorf("media = %s", w.Body.String())
	}
}

// TestUpdateActivity частичное обновление присутствия через API
func TestUpdateActivity(t *testing.T) {
	s := newTestServer(t)
	u := s.store.AddUser("u")
	roomID := uuid.New()

	w := s.do(t, u.ID, http.MethodPut, "/user/current/activity", `{"busy":true,"typingIn":"`+roomID.String()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, u.ID, http.MethodPut, "/user/current/activity", `{"typingIn":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, u.ID, http.MethodGet, "/user/current", "")
	var me models.User
	json.Unmarshal(w.Body.Bytes(), &me)
	if !me.Busy || me.TypingIn != nil {
		t.Errorf("user = %s, want busy and not typing", w.Body.String())
	}

	if w := s.do(t, u.ID, http.MethodPut, "/user/current/activity", `{"typingIn":"nope"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad room ref = %d", w.Code)
	}
}

// TestGetMeUnknownUser несуществующий пользователь это неверный ввод, а не 404
func TestGetMeUnknownUser(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, uuid.New(), http.MethodGet, "/user/current", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := errorBody(t, w); msg != "Requested user does not exist" {
		t.Errorf("error = %q", msg)
	}
}
