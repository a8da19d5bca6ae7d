package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMoveClient_Success(t *testing.T) {
	var got MoveRequest
	var path, authz, conn string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authz = r.Header.Get("Authorization")
		conn = r.Header.Get(HeaderConnectionID)
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`"moved"`))
	}))
	defer srv.Close()

	c := NewMoveClient(srv.URL+"/", "tok", time.Second)
	c.ConnectionID = "conn-1"
	in := Intent{Kind: "lists", Move: MoveRequest{ItemID: 9, SourceListID: 1, DestinationListID: 1, OldSeqNo: 1, NewSeqNo: 2}}
	if err := c.Execute(context.Background(), in); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if path != "/api/lists/move" {
		t.Errorf("path = %q", path)
	}
	if authz != "Bearer tok" || conn != "conn-1" {
		t.Errorf("headers = %q, %q", authz, conn)
	}
	if got != in.Move {
		t.Errorf("body = %+v, want %+v", got, in.Move)
	}
}

func TestMoveClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		wantMsg string
	}{
		{"not found", http.StatusNotFound, `{"error":"item not found"}`, ErrRejected, "item not found"},
		{"bad request", http.StatusBadRequest, `{"error":"invalid position"}`, ErrRejected, "invalid position"},
		{"unavailable", http.StatusServiceUnavailable, `{"error":"store unavailable"}`, ErrRetryable, "store unavailable"},
		{"plain 500", http.StatusInternalServerError, "boom", ErrRetryable, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewMoveClient(srv.URL, "", time.Second).Execute(context.Background(), move(1, 1))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.status || se.Message != tt.wantMsg {
				t.Errorf("status error = %+v", se)
			}
		})
	}
}

func TestMoveClient_TimeoutIsRetryable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := NewMoveClient(srv.URL, "", 20*time.Millisecond).Execute(context.Background(), move(1, 1))
	if !errors.Is(err, ErrRetryable) {
		t.Errorf("err = %v, want ErrRetryable", err)
	}
}

func TestMoveClient_CancelIsNotRetryable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMoveClient("http://127.0.0.1:1", "", time.Second).Execute(ctx, move(1, 1))
	if err == nil || errors.Is(err, ErrRetryable) {
		t.Errorf("err = %v, want a non-retryable cancellation", err)
	}
}
