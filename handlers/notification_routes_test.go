package handlers

import (
	"testing"
	"time"

	"survivor-pool/models"

	"github.com/stretchr/testify/assert"
)

func ids(ns []models.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func TestStreamCursor_SameTimestampAcrossPolls(t *testing.T) {
	at := now.Add(time.Minute).Truncate(time.Microsecond)
	a := models.Notification{ID: "a", CreatedAt: at}
	b := models.Notification{ID: "b", CreatedAt: at}

	cur := newStreamCursor(now, time.Second)
	assert.Equal(t, []string{"a"}, ids(cur.advance([]models.Notification{a})))

	// b commits after the first poll with the same timestamp as a.
	assert.True(t, b.CreatedAt.After(cur.since()), "the next query still covers b")
	assert.Equal(t, []string{"b"}, ids(cur.advance([]models.Notification{a, b})))
	assert.Empty(t, cur.advance([]models.Notification{a, b}))
}

func TestStreamCursor_LateRowBehindNewest(t *testing.T) {
	cur := newStreamCursor(now, time.Second)
	newest := models.Notification{ID: "n2", CreatedAt: now.Add(2 * time.Second)}
	late := models.Notification{ID: "n1", CreatedAt: now.Add(1500 * time.Millisecond)}

	assert.Equal(t, []string{"n2"}, ids(cur.advance([]models.Notification{newest})))
	assert.Equal(t, []string{"n1"}, ids(cur.advance([]models.Notification{late, newest})))
}

func TestStreamCursor_ForgetsOutsideWindow(t *testing.T) {
	cur := newStreamCursor(now, time.Second)
	cur.advance([]models.Notification{{ID: "old", CreatedAt: now.Add(time.Second)}})
	cur.advance([]models.Notification{{ID: "new", CreatedAt: now.Add(10 * time.Second)}})

	assert.NotContains(t, cur.seen, "old")
	assert.Contains(t, cur.seen, "new")
}
