package fingerprint

import "context"

type deviceIDContextKey struct{}

func SetDeviceIDToContext(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

func GetDeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDContextKey{}).(string)
	return id
}
