package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=e6dl", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("e6dl").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// Notifier handles cross-platform notifications
type Notifier struct {
	sender NotificationSender
	out    io.Writer
	logger logger.Logger
}

// NewNotifier creates a new Notifier based on the current platform
func NewNotifier() *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWithSender(sender, os.Stdout)
}

// NewNotifierWithSender creates a Notifier using sender, which may be nil
func NewNotifierWithSender(sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, out: out, logger: logger.Nop()}
}

// SetLogger sets where failed desktop notifications are reported
func (n *Notifier) SetLogger(log logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	n.logger = log
}

// SendNotification sends a desktop notification and prints to console
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// NotifyReport announces the outcome of a finished run
func (n *Notifier) NotifyReport(report *poolsync.Report) {
	message := fmt.Sprintf("%d posts downloaded across %d pools", report.Downloaded(), len(report.Pools))

	switch {
	case report.AnyFailed():
		n.SendError("e6dl finished with errors",
			fmt.Sprintf("%s, %d pools failed", message, report.Count(poolsync.StateFailed)))
	case report.PostFailures() > 0:
		n.SendNotification("e6dl finished",
			fmt.Sprintf("%s, %d posts failed", message, report.PostFailures()))
	default:
		n.SendSuccess("e6dl finished", message)
	}
}

// send delivers the desktop notification. The console line has already
// been printed, so a failure is only logged.
func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		n.logger.Debug("No desktop notification support on this platform")
		return
	}
	if err := n.sender.Send(title, message); err != nil {
		n.logger.WithError(err).WithField("title", title).Warn("Failed to send desktop notification")
	}
}
