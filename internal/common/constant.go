package common

// ClientAuthTokenHeaderName is the HTTP header used to carry the caller's
// ClientAuthenticationToken on host-to-host requests.
const ClientAuthTokenHeaderName = "X-Client-Auth-Token"

// OwnerTokenHeaderName carries the owner-console JWT on owner endpoints.
const OwnerTokenHeaderName = "Authorization"

// MasterKeyHeaderName carries the base64 owner master key on the few owner
// operations that need it (grant creation, drive creation). The key is never
// persisted; it lives only for the request.
const MasterKeyHeaderName = "X-Master-Key"
