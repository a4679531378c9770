// Package logger centraliza zap para el núcleo de auth: construcción del
// logger del proceso, el logger por request que viaja en el context y los
// campos tipados que usan los componentes.
//
// No hay singleton propio. main construye el logger con New, lo pasa por
// constructor a cada componente y lo registra con zap.ReplaceGlobals para
// el código que sólo tiene un context:
//
//	lg, err := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer lg.Sync()
//	zap.ReplaceGlobals(lg)
//
//	logger.From(ctx).Warn("refresh replay", logger.SessionID(id), logger.Reason("reused"))
//
// Emails salen enmascarados y los tokens sólo como prefijo de su hash.
package logger
