// Package guest is the sandbox side of the boundary: a goja script engine
// behind the new_context, drop_context, eval and register exports.
//
// Every context is its own goja.Runtime, so globals and registered names never
// leak between contexts. A registered name is a forwarding function that
// serialises its arguments into a CallRequest, calls the registered_callback
// import and hands the decoded result back to the script. Host failures are
// thrown as TypeErrors carrying code and callback properties.
package guest
