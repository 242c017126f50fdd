// Package firebase implements checkin.IdentityProvider over the Firebase
// Auth REST API.
//
// Use this package to back a SessionStore with a real Firebase project while
// preserving checkin session and authorization behavior. The provider keeps
// the current identity and token pair in memory and fans auth-state changes
// out to subscribers, mirroring the SDK's onAuthStateChanged contract.
package firebase
