package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
)

func sampleReport() *poolsync.Report {
	return &poolsync.Report{
		Duration: 3 * time.Second,
		Pools: []*poolsync.PoolStatus{
			{
				PoolID: 77, Name: "Ten Pages", State: poolsync.StateDone,
				Summary: &downloader.Summary{
					Succeeded: 9, Failed: 1, Bytes: 4096,
					Failures: []downloader.Failure{{PostID: 972, Page: 5, Err: errors.New("no file URL")}},
				},
			},
			{PoolID: 12, Name: "Quiet", State: poolsync.StateUpToDate},
			{PoolID: 13, Name: "Declined", State: poolsync.StateSkipped},
			{PoolID: 99, State: poolsync.StateFailed, Err: errors.New("pool 99 not found")},
		},
	}
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	PrintReport(&out, sampleReport())
	text := out.String()

	assert.Contains(t, text, "Ten Pages (77): 9 downloaded, 1 failed, 4.0 KB")
	assert.Contains(t, text, "page 5 (post 972): no file URL")
	assert.Contains(t, text, "Quiet (12): up to date")
	assert.Contains(t, text, "Declined (13): skipped")
	assert.Contains(t, text, "pool (99): pool 99 not found")
	assert.Contains(t, text, "4 pools")
	assert.Contains(t, text, "9 posts downloaded")
	assert.Contains(t, text, "1 posts failed")
	assert.Contains(t, text, "1 pools failed")
}

func TestPrintReportEmpty(t *testing.T) {
	var out bytes.Buffer
	PrintReport(&out, &poolsync.Report{})
	assert.Contains(t, out.String(), "No pools processed")
}

type recordingSender struct {
	titles   []string
	messages []string
}

func (s *recordingSender) Send(title, message string) error {
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return errors.New("no notification daemon")
}

func TestNotifyReport(t *testing.T) {
	sender := &recordingSender{}
	var out bytes.Buffer
	n := NewNotifierWithSender(sender, &out)

	n.NotifyReport(sampleReport())
	n.NotifyReport(&poolsync.Report{Pools: []*poolsync.PoolStatus{{State: poolsync.StateUpToDate}}})

	assert.Equal(t, []string{"e6dl finished with errors", "e6dl finished"}, sender.titles)
	assert.Contains(t, sender.messages[0], "9 posts downloaded across 4 pools, 1 pools failed")
	assert.Contains(t, out.String(), "0 posts downloaded across 1 pools")
}

func TestNotifierLogsSendFailure(t *testing.T) {
	log := logger.NewTestLogger()
	var out bytes.Buffer
	n := NewNotifierWithSender(&recordingSender{}, &out)
	n.SetLogger(log)

	n.SendSuccess("e6dl finished", "done")

	warnings := log.GetMessagesByLevel("WARN")
	if assert.Len(t, warnings, 1) {
		assert.Equal(t, "Failed to send desktop notification", warnings[0].Message)
		assert.Equal(t, "no notification daemon", warnings[0].Fields["error"])
	}
	assert.Contains(t, out.String(), "done")
}

func TestNotifierWithoutSender(t *testing.T) {
	var out bytes.Buffer
	NewNotifierWithSender(nil, &out).SendNotification("title", "body")
	assert.Contains(t, out.String(), "body")
}

func TestAppleScriptString(t *testing.T) {
	assert.Equal(t, `"say \"hi\" \\ bye"`, appleScriptString(`say "hi" \ bye`))
}
