/*
Package protocol defines the values and envelopes that cross the sandbox boundary.

# Value Model

Value is a closed tagged union of four kinds:

  - Void: no value (an undefined completion or a function without result)
  - Int: 32-bit signed integer
  - Bool: boolean
  - Str: UTF-8 text

Nothing else crosses the boundary. Conversions never widen or coerce between
kinds; a mismatch is a WrongType error.

# Envelopes

	host -> guest: EvalRequest, RegisterRequest, DropContextRequest
	guest -> host: CallRequest (re-entrant, while an eval is still running)
	responses:     EvalResponse, Ack, CallResponse, NewContextResponse

Every envelope names the context resource handle it belongs to.

# Codecs

Envelopes are serialised with a self-describing encoding. MsgPack (compact
tagged maps) is the default; JSON is available for inspecting traffic. A
decoding failure is always a protocol error, distinct from script or type
errors.

# Errors

Error carries a Code, a message and an optional cause. The package-level
sentinels match by code:

	if errors.Is(err, protocol.ErrAborted) {
		// the script ran out of time or host-call budget
	}
*/
package protocol
