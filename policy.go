package offlinekit

import "fmt"

const (
	// CacheGeneration is the cache generation identifier.
	// Bumping it invalidates every previously stored response,
	// both in the browser-side cache and in the server-side store.
	CacheGeneration = "offline-v1"

	// WellKnownPath is the path the policy script is served from.
	// The service worker scope depends on this being a root-level path.
	WellKnownPath = "/sw.js"

	// APIPrefix marks API-style endpoints, which get a JSON offline
	// fallback instead of the plain-text one.
	APIPrefix = "/api/"
)

// GeneratePolicy returns the source of the background caching agent
// (a service worker). The text is the same on every call; the only
// version information is the embedded cache generation identifier.
//
// The agent implements the blanket cache-everything policy: every
// successful GET response is stored, a failed fetch is answered from
// the store, and a miss on top of that gets a synthesized 503.
func GeneratePolicy() string {
	return fmt.Sprintf(policyTemplate, CacheGeneration, WellKnownPath, APIPrefix)
}

const policyTemplate = `"use strict";

var CACHE_NAME = %q;
var SCRIPT_PATH = %q;
var API_PREFIX = %q;

// No staged rollout: a new generation takes over right away.
self.addEventListener("install", function () {
  self.skipWaiting();
});

self.addEventListener("activate", function (event) {
  event.waitUntil(
    caches
      .keys()
      .then(function (names) {
        return Promise.all(
          names
            .filter(function (name) {
              return name !== CACHE_NAME;
            })
            .map(function (name) {
              return caches.delete(name);
            })
        );
      })
      .then(function () {
        return self.clients.claim();
      })
      .then(function () {
        return self.clients.matchAll();
      })
      .then(function (clients) {
        clients.forEach(function (client) {
          client.postMessage({ type: "cache-updated", generation: CACHE_NAME });
        });
      })
  );
});

self.addEventListener("message", function (event) {
  if (event.data && event.data.type === "skip-waiting") {
    self.skipWaiting();
  }
});

self.addEventListener("fetch", function (event) {
  if (event.request.method !== "GET") {
    return;
  }
  event.respondWith(
    fetch(event.request)
      .then(function (response) {
        var url = new URL(event.request.url);
        if (response.ok && url.pathname !== SCRIPT_PATH) {
          // Fire and forget: the response is returned without
          // waiting for the cache write.
          var copy = response.clone();
          caches
            .open(CACHE_NAME)
            .then(function (cache) {
              return cache.put(event.request, copy);
            })
            .catch(function () {});
        }
        return response;
      })
      .catch(function () {
        return caches.match(event.request).then(function (cached) {
          return cached || offlineFallback(event.request);
        });
      })
  );
});

function offlineFallback(request) {
  var url = new URL(request.url);
  if (url.pathname.indexOf(API_PREFIX) === 0) {
    return new Response(
      JSON.stringify({
        error: "Offline",
        message: "You are offline and no cached data is available",
        timestamp: new Date().toISOString(),
      }),
      {
        status: 503,
        statusText: "Service Unavailable",
        headers: { "Content-Type": "application/json" },
      }
    );
  }
  return new Response("You are offline and no cached version is available", {
    status: 503,
    statusText: "Service Unavailable",
    headers: { "Content-Type": "text/plain" },
  });
}
`
