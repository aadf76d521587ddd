/*
Package authstate owns the client's notion of "current session".

A Store holds at most one Session and notifies subscribers, in order, each
time it is replaced. Operations (sign in, sign up, sign out, password reset
and update), Enrollment (TOTP) and Recovery (password reset links) call the
identity provider through a Gateway and feed their results into the Store.
GoTrueGateway is the Gateway for GoTrue-compatible providers.

Every operation returns a Result whose Err carries an ErrorKind and a
localised Message; nothing in this package panics on a provider failure.

Operations perform no mutual exclusion. Two overlapping calls both reach the
provider and the one that resolves last wins in the Store. Callers that need
to prevent double submission hold a SubmitGuard while a call is outstanding.
*/
package authstate
