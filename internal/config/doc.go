// Package config manages the lanprobe configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/lanprobe/config.yaml or $HOME/.config/lanprobe/config.yaml
//   - macOS: $HOME/.config/lanprobe/config.yaml
//   - Windows: %LOCALAPPDATA%\lanprobe\config.yaml
//
// Every key is optional. Values missing from the file keep the defaults from
// Default, which match the discovery package constants.
//
// # File Format
//
//	version: 1
//	network:
//	  interface: eth0        # directed broadcast; omit for 255.255.255.255
//	  bind_port: 20088
//	  broadcast_port: 20086
//	  recv_window: 1472
//	receive:
//	  timeout_seconds: 10
//	  max_attempts: 15
//	bind:
//	  attempts: 6
//	  retry_delay_ms: 1000
//	identity:
//	  component_type: bots
//	  username: alice
//	  uid: 1000
//	responder:
//	  component_type: machine
//	  component_id: 1
//	  advertise_mdns: true
//	  match_uid: false
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	ep, err := discovery.New(cfg.EndpointConfig())
//
// # Thread Safety
//
// Save serializes writers within the process and replaces the file with an
// atomic rename. LoadGlobal is safe for concurrent use; the returned *Config
// is shared and should be treated as read-only.
package config
