// Package mqtt makes the assistant visible on a Home Assistant MQTT
// broker. It publishes retained discovery configs for a handful of
// sensor entities, a birth message on the availability topic, and
// periodic state updates (uptime, model, active sessions, mood). A
// will message flips availability to "offline" on unexpected
// disconnects.
//
// Connection management uses Eclipse Paho v2's autopaho package, which
// reconnects automatically; discovery and the birth message are
// republished on every (re-)connect.
package mqtt
