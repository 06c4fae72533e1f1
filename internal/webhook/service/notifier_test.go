package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabhq/internal/provider/tracer"
)

func TestNotifyPostsSignedCallback(t *testing.T) {
	var gotSecret string
	var gotBody Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("verif-hash")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewNotifier(time.Second, tracer.NewNoop(), testLogger())
	err := notifier.Notify(context.Background(), srv.URL, "abc", Notification{
		TxRef:    "tx-1",
		Status:   "SUCCESS",
		Amount:   decimal.NewFromInt(100),
		Currency: "GHS",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", gotSecret)
	assert.Equal(t, "tx-1", gotBody.TxRef)
	assert.Equal(t, "SUCCESS", gotBody.Status)
	assert.Equal(t, "GHS", gotBody.Currency)
}

func TestNotifyReportsTenantErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewNotifier(time.Second, tracer.NewNoop(), testLogger())
	err := notifier.Notify(context.Background(), srv.URL, "abc", Notification{TxRef: "tx-1"})
	assert.Error(t, err)
}

func TestNotifyTimesOut(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	notifier := NewNotifier(50*time.Millisecond, tracer.NewNoop(), testLogger())
	start := time.Now()
	err := notifier.Notify(context.Background(), srv.URL, "abc", Notification{TxRef: "tx-1"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
