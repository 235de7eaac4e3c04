/*
Package config loads horao's configuration surface through a layered
viper.Viper stack: built-in defaults, an optional YAML file, HORAO_*
environment variables, then bound cobra flags, in increasing precedence.

	cfg, err := config.Load(cmd)
	node := gossip.NewNode(gossip.Config{
		PeerID: cfg.PeerID, HostID: cfg.HostID, Secret: []byte(cfg.PeerSecret),
		Peers: cfg.Peers, Strict: cfg.PeerStrict,
		SyncDelta: cfg.SyncDelta(), SyncMax: cfg.SyncMaxOps,
	}, m, c, engine)
*/
package config
