// Package api is the REST client for the edushare backend.
//
// # Overview
//
// A single Client is shared by every component of a console process. Once a
// session attaches a bearer token with SetToken, every subsequent call carries
// it in the Authorization header; there is no refresh, so an expired token
// surfaces as a 401 *Error on the next call.
//
// # Endpoints
//
//   - Auth: Login, Me, Register
//   - Admin configs: ListConfigs, CreateConfig, UpdateConfig (no delete endpoint exists)
//   - Admin users: ListUsers, UpdateUser
//   - Admin resources: ListAdminResources, UpdateResource, DeleteResource
//   - Admin logs: ListLogs
//   - Portal: SearchResources, UploadResource, Download, Fetch
//
// # Errors
//
// Non-2xx responses decode into *Error. FastAPI reports failures as
// {"detail": "..."} or, for validation failures, {"detail": [{"msg": ...}]};
// both shapes populate Error.Detail. Message picks the detail to show a user
// and falls back to a caller-supplied generic message otherwise:
//
//	if err := client.UpdateUser(ctx, id, upd); err != nil {
//	    fmt.Println(api.Message(err, "failed to update user"))
//	}
package api
