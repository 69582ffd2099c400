// Package bootstrap wires configuration into running infrastructure.
//
//	cfg := &config.Config{}
//	if err := config.LoadConfigWithSecrets(cfg, cfg.Secrets()); err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyDefaults()
//	if err := bootstrap.InitLogger(cfg.Log, cfg.LogFile, "chatctl"); err != nil {
//	    log.Fatal(err)
//	}
//	shutdown, err := bootstrap.InitTracing(ctx, cfg.Tracing)
//	if err != nil {
//	    log.Warn(err)
//	}
//	defer shutdown(ctx)
//
//	rt, err := bootstrap.NewRuntime(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
package bootstrap
