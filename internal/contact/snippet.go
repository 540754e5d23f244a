package contact

import (
	"strconv"
	"strings"
)

// snippetJS is the embeddable form script. The quoted placeholders are
// replaced with JS string literals at serve time.
const snippetJS = `(function () {
  "use strict";
  var API_BASE = __API_BASE__;
  var SITE_KEY = __SITE_KEY__;

  function field(tag, name, type, label) {
    var wrap = document.createElement("div");
    wrap.className = "skycms-contact-field";
    var lab = document.createElement("label");
    lab.textContent = label;
    lab.setAttribute("for", "skycms-contact-" + name);
    var input = document.createElement(tag);
    if (type) input.type = type;
    input.name = name;
    input.id = "skycms-contact-" + name;
    wrap.appendChild(lab);
    wrap.appendChild(input);
    return wrap;
  }

  function submit(form, status) {
    var payload = {
      name: form.elements.name.value,
      email: form.elements.email.value,
      subject: form.elements.subject.value,
      body: form.elements.body.value,
      captcha_token: ""
    };
    if (SITE_KEY && window.grecaptcha) {
      payload.captcha_token = window.grecaptcha.getResponse();
    } else if (form.elements.captcha_token) {
      payload.captcha_token = form.elements.captcha_token.value;
    }
    status.textContent = "Sending...";
    fetch(API_BASE + "/_api/contact/submit", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(payload)
    }).then(function (resp) {
      if (resp.ok) {
        form.reset();
        status.textContent = "Thanks, your message was sent.";
        return;
      }
      return resp.json().then(function (body) {
        status.textContent = body && body.error ? body.error : "Sending failed, please try again.";
      });
    }).catch(function () {
      status.textContent = "Sending failed, please try again.";
    });
  }

  function render(target) {
    var form = document.createElement("form");
    form.className = "skycms-contact-form";
    form.appendChild(field("input", "name", "text", "Name"));
    form.appendChild(field("input", "email", "email", "Email"));
    form.appendChild(field("input", "subject", "text", "Subject"));
    form.appendChild(field("textarea", "body", null, "Message"));
    if (SITE_KEY) {
      var captcha = document.createElement("div");
      captcha.className = "g-recaptcha";
      captcha.setAttribute("data-sitekey", SITE_KEY);
      form.appendChild(captcha);
    }
    var button = document.createElement("button");
    button.type = "submit";
    button.textContent = "Send";
    form.appendChild(button);
    var status = document.createElement("p");
    status.className = "skycms-contact-status";
    form.appendChild(status);
    form.addEventListener("submit", function (ev) {
      ev.preventDefault();
      submit(form, status);
    });
    target.appendChild(form);
  }

  var target = document.getElementById("skycms-contact");
  if (target) render(target);
})();
`

// Snippet renders the embeddable contact form script. apiBase is the
// origin the form posts to; empty means same-origin. siteKey enables
// the CAPTCHA widget when set.
func Snippet(apiBase, siteKey string) string {
	base := strings.TrimRight(apiBase, "/")
	return strings.NewReplacer(
		"__API_BASE__", strconv.Quote(base),
		"__SITE_KEY__", strconv.Quote(siteKey),
	).Replace(snippetJS)
}
