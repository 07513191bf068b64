// Package commands defines the cipherdm CLI.
//
// Commands
//
//   - init           Create the local identity
//   - import         Import a PKCS#8/SPKI key pair exported by the web client
//   - fingerprint    Print the identity fingerprint
//   - register       Publish the public key to the backend
//   - new-chat       Create a direct or group chat
//   - chats          Load and print every chat with decrypted history
//   - send           Send a message to a chat
//   - listen         Print new messages as they arrive
//   - pins           Print certificate pins for a PEM file or a live server
//
// # Implementation
//
// The root command loads configuration (file, CIPHERDM_* environment, flags)
// and builds the logger and the passphrase-free part of the dependency graph
// before any subcommand runs. Commands that need the private key unlock it
// with the passphrase through app.Wire.Open.
package commands
