package goicon

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultNotificationDuration is how long a notification stays visible
// before it dismisses itself.
const DefaultNotificationDuration = 3 * time.Second

// NotificationKind is the outcome a notification reports.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification is a transient, auto-dismissing status message.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	Message  string           `json:"message"`
	Duration time.Duration    `json:"duration"`
	// ErrorKind is set for error notifications.
	ErrorKind ErrorKind `json:"-"`
}

// Notifier receives export outcomes. Implementations must not block for
// long; the exporter calls them synchronously.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n.Kind == NotifyError {
		logger.WarnContext(ctx, n.Message, "notification", n.Kind, "error_kind", n.ErrorKind.String())
		return
	}
	logger.InfoContext(ctx, n.Message, "notification", n.Kind)
}

// Message keys. English text doubles as the key.
const (
	msgDownloaded = "Icon downloaded: %s"
	msgTainted    = "The image host does not allow cross-origin use; enable CORS on the image server"
)

var supportedLanguages = []language.Tag{language.English, language.Japanese}

func init() {
	ja := language.Japanese
	for key, text := range map[string]string{
		msgDownloaded:                 "アイコンをダウンロードしました: %s",
		msgTainted:                    "画像サーバーがクロスオリジン利用を許可していません。CORSを有効にしてください",
		ErrContainerNotFound.Error():  "アイコンコンテナが見つかりません",
		ErrImageLoadFailed.Error():    "画像読み込みに失敗しました",
		ErrImageLoadTimedOut.Error():  "画像読み込みタイムアウト",
		ErrSurfaceUnavailable.Error(): "描画サーフェスを取得できませんでした",
		genericFailureMessage:         "ダウンロードに失敗しました",
		"image cannot be loaded":      "画像を読み込めません",
	} {
		_ = message.SetString(ja, key, text)
	}
}

// Localizer renders user-facing messages in one language.
type Localizer struct {
	p *message.Printer
}

// NewLocalizer returns a Localizer for a BCP 47 tag such as "en" or "ja".
// Unsupported languages fall back to English.
func NewLocalizer(lang string) Localizer {
	tag, _ := language.MatchStrings(language.NewMatcher(supportedLanguages), lang)
	base, _ := tag.Base()
	return Localizer{p: message.NewPrinter(language.Make(base.String()))}
}

// Text formats a message key in the localizer's language.
func (l Localizer) Text(key string, args ...any) string {
	if l.p == nil {
		l = NewLocalizer("en")
	}
	return l.p.Sprintf(key, args...)
}

// SuccessNotification builds the notification for a completed download.
func (l Localizer) SuccessNotification(filename string) Notification {
	return Notification{
		Kind:     NotifySuccess,
		Message:  l.Text(msgDownloaded, filename),
		Duration: DefaultNotificationDuration,
	}
}

// ErrorNotification builds the notification for a failed export. Known
// failure kinds get a translated message; others keep the error text.
func (l Localizer) ErrorNotification(err *ExportError) Notification {
	msg := err.Message
	switch err.Kind {
	case KindSerializationTainted:
		msg = l.Text(msgTainted)
	case KindUnknown:
		if msg == genericFailureMessage {
			msg = l.Text(genericFailureMessage)
		}
	default:
		msg = l.Text(err.Kind.sentinel().Error())
	}
	return Notification{
		Kind:      NotifyError,
		Message:   msg,
		Duration:  DefaultNotificationDuration,
		ErrorKind: err.Kind,
	}
}
