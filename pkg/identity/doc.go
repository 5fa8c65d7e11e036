/*
Package identity is the client for the mind map identity service.

# Overview

Client wraps the five remote session operations behind one result contract:
every call returns either a payload or a *Failure carrying a Kind derived from
the HTTP status. The client never retries; callers decide policy.

	client := identity.NewClient("https://maps.example.com/auth")

	grant, err := client.Login(ctx, identity.Credentials{Email: email, Password: password})
	if err != nil {
		var f *identity.Failure
		if errors.As(err, &f) && f.Kind == identity.KindValidation {
			for field, msgs := range f.Fields {
				fmt.Println(field, msgs)
			}
		}
		return err
	}

	profile, err := client.FetchProfile(ctx, identity.StaticToken(grant.Token))

# Operations

  - Login: POST /login with credentials, returns a Grant (token + expiry)
  - Register: POST /register with profile fields, returns a Grant
  - FetchProfile: GET /user, the who-am-I call
  - Logout: POST /logout
  - CheckPermission: GET /check-permission?resource=&action=
  - UpdateProfile: POST /user/update

# Credentials

Authenticated calls take a TokenSource. The bearer header is attached only
when the source yields a non-empty token, so a source that filters expired
credentials (the session controller does) guarantees an expired token is
never transmitted. A nil source sends no header, which suits cookie-based
deployments.

# Failures

Failure.Kind is one of:

  - KindNetwork: no response (DNS, refused connection, cancelled context)
  - KindUnauthorized: 401 or 403
  - KindValidation: 400, 409 or 422; Fields maps field name to messages
  - KindServer: 5xx and anything else unexpected, including malformed bodies

Sentinels such as ErrUnauthorized match by kind with errors.Is.

# Expiry

A Grant always has an absolute expiry. The client reads "expires_at" (unix
milliseconds or RFC 3339), then "expires_in" (seconds), then the "exp" claim
when the token is a JWT. A token response with none of these is rejected.

# Request Validation

Login and Register payloads are checked client-side for missing fields and a
malformed email before any request is sent, returning a KindValidation
failure that looks like a server 422. Every other rule is left to the
service. Set ValidateRequests to false to send payloads as-is.
*/
package identity
