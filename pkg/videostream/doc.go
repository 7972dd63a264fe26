// Package videostream provides the building blocks of a video delivery
// gateway: identifier validation, metadata resolution, stream relays and
// best-effort access notifications.
//
// A request flows through the components in a fixed order. The identifier is
// validated before any I/O, resolved to a storage locator through a Resolver,
// and the bytes behind the locator are relayed to the caller by a Relay,
// either by proxying an upstream storage service or by reading a BlobStore
// directly. Once a stream completes, an AccessEvent is handed to an
// EventDispatcher which publishes it in the background through a Notifier.
//
// Implementations live in subpackages: resolver/{memory,mongo,postgres},
// storage/{fs,memory,s3}, relay, and notify/{amqp,nats}. The api subpackage
// composes them into an http.Handler.
package videostream
