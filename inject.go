package offlinekit

import "bytes"

var bodyCloseTag = []byte("</body>")

// Inject returns the document with the offline augmentation block added.
// The block goes immediately before the first closing body tag
// (case-sensitive), or at the very end if there is none.
// The rest of the document is passed through untouched, so malformed
// markup stays malformed.
func Inject(doc []byte) []byte {
	i := bytes.Index(doc, bodyCloseTag)
	if i < 0 {
		i = len(doc)
	}
	out := make([]byte, 0, len(doc)+len(augmentation))
	out = append(out, doc[:i]...)
	out = append(out, augmentation...)
	out = append(out, doc[i:]...)
	return out
}

// InjectString is Inject for callers holding the document as a string.
func InjectString(doc string) string {
	return string(Inject([]byte(doc)))
}

// The augmentation block: status banner and update notice markup, plus the
// bootstrap script. The script builds a single controller object at load,
// keeps the listeners it registered so they can be torn down, and does four
// things: reflect connectivity in the banner, register the caching agent
// (failures are logged and swallowed), react to connectivity and
// "cache-updated" messages, and offer an update-now action that tells a
// waiting agent to skip waiting and reloads the page.
const augmentation = `<div id="offline-kit-status" style="display:none">You are offline. Showing cached content.</div>
<div id="offline-kit-update" style="display:none">A new version is available. <button id="offline-kit-update-now">Update now</button></div>
<script>
(function () {
  "use strict";

  function OfflineController(win, doc) {
    this.win = win;
    this.doc = doc;
    this.statusEl = doc.getElementById("offline-kit-status");
    this.updateEl = doc.getElementById("offline-kit-update");
    this.cancels = [];
  }

  // subscribe registers a listener and returns a cancellation handle.
  // The handle is also kept so stop() can tear everything down.
  OfflineController.prototype.subscribe = function (target, event, handler) {
    target.addEventListener(event, handler);
    var cancel = function () {
      target.removeEventListener(event, handler);
    };
    this.cancels.push(cancel);
    return cancel;
  };

  OfflineController.prototype.renderStatus = function () {
    this.statusEl.style.display = this.win.navigator.onLine ? "none" : "block";
  };

  OfflineController.prototype.showUpdateNotice = function () {
    this.updateEl.style.display = "block";
  };

  OfflineController.prototype.registerAgent = function () {
    var nav = this.win.navigator;
    if (!("serviceWorker" in nav)) {
      return;
    }
    var self = this;
    nav.serviceWorker.register("/sw.js").catch(function (err) {
      // Install failure is logged only, never surfaced or retried.
      console.log("offline-kit: agent registration failed:", err);
    });
    this.subscribe(nav.serviceWorker, "message", function (event) {
      if (event.data && event.data.type === "cache-updated") {
        self.showUpdateNotice();
      }
    });
  };

  OfflineController.prototype.updateNow = function () {
    var win = this.win;
    win.navigator.serviceWorker.getRegistration().then(function (reg) {
      if (reg && reg.waiting) {
        reg.waiting.postMessage({ type: "skip-waiting" });
      }
      win.location.reload();
    });
  };

  OfflineController.prototype.start = function () {
    var self = this;
    this.renderStatus();
    this.registerAgent();
    this.subscribe(this.win, "online", function () {
      self.renderStatus();
    });
    this.subscribe(this.win, "offline", function () {
      self.renderStatus();
    });
    this.subscribe(this.doc.getElementById("offline-kit-update-now"), "click", function () {
      self.updateNow();
    });
  };

  OfflineController.prototype.stop = function () {
    this.cancels.forEach(function (cancel) {
      cancel();
    });
    this.cancels = [];
  };

  var controller = new OfflineController(window, document);
  controller.start();
  window.addEventListener("pagehide", function () {
    controller.stop();
  });
})();
</script>
`
