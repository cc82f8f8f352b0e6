// Package simulator emulates a TigerScale on the local network: the same
// HTTP endpoints, the same WebSocket push channel and the same quirks
// (boot tare, "ok" in plain text for key deletion, sendToCloud countdown).
//
// Architecture:
//
//   - Scale models the firmware: load cell, RFID reader, NVS preferences
//     and the automatic cloud push.
//   - Store persists preferences, in memory or in a bbolt file.
//   - Server routes requests with gorilla/mux, fans frames out to WebSocket
//     clients and optionally announces itself over mDNS.
//
// A few /sim endpoints drive the emulated hardware:
//
//	POST   /sim/load  {"grams": 215}
//	POST   /sim/tag   {"uid": "1234567890"}
//	DELETE /sim/tag
package simulator
