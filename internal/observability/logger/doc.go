// Package logger provides a singleton Zap logger with context-based scoping.
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context scoping: cada request lleva su propio logger con request_id,
//     inyectado por el middleware RequestID.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//
// Los valores de state nunca se loguean completos; usar StatePrefix.
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth2.grant"))
//	log.Info("callback completed", logger.ConfigID(id), logger.Outcome("ok"))
package logger
