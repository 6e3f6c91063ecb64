package indicator

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyIface = "org.freedesktop.Notifications"
	notifyIcon  = "audio-input-microphone"
)

// notifier posts and closes freedesktop notifications.
type notifier interface {
	Notify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error)
	Dismiss(ctx context.Context, id uint32) error
}

// sessionBus talks to the notification daemon over a short-lived private
// session bus connection per call.
type sessionBus struct{}

func (sessionBus) Notify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	var id uint32
	err := withNotifications(ctx, func(obj dbus.BusObject) error {
		hints := map[string]dbus.Variant{"category": dbus.MakeVariant("device")}
		return obj.CallWithContext(ctx, notifyIface+".Notify", 0,
			appName, replaceID, notifyIcon, summary, "", []string{}, hints, int32(timeoutMS),
		).Store(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}
	return id, nil
}

func (sessionBus) Dismiss(ctx context.Context, id uint32) error {
	err := withNotifications(ctx, func(obj dbus.BusObject) error {
		return obj.CallWithContext(ctx, notifyIface+".CloseNotification", 0, id).Err
	})
	if err != nil {
		return fmt.Errorf("desktop dismiss: %w", err)
	}
	return nil
}

// Probe reports whether a notification daemon owns its well-known name on
// the session bus.
func Probe(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	var owned bool
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, notifyDest).Store(&owned); err != nil {
		return fmt.Errorf("query %s: %w", notifyDest, err)
	}
	if !owned {
		return fmt.Errorf("no notification daemon owns %s", notifyDest)
	}
	return nil
}

func withNotifications(ctx context.Context, fn func(dbus.BusObject) error) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()
	return fn(conn.Object(notifyDest, notifyPath))
}
