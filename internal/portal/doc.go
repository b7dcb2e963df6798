// ABOUTME: Package portal implements the end-user resource workflows
// ABOUTME: Registration, search, upload and points-spending downloads

// Package portal drives the public side of edushare: registering an account,
// searching resources, uploading new ones and downloading files. Every form
// is validated locally before the network is touched, and the session user
// is refreshed after operations that change the points balance.
package portal
