package web

const loginPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Thermal Vision: sign in</title></head>
<body>
<h1>Sign in</h1>
<form method="post" action="/auth/login">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
<p id="error" hidden>Invalid email or password.</p>
<script>
if (location.search.includes("error")) document.getElementById("error").hidden = false;
</script>
</body>
</html>`

const detectPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Thermal Vision</title>
<style>
#result { position: relative; display: inline-block; }
#result img { max-width: 640px; }
#toast { color: #b00; }
</style>
</head>
<body>
<h1>Thermal detection</h1>
<form id="logout" method="post" action="/auth/logout"><button>Sign out</button></form>
<input id="file" type="file" accept="image/*">
<button id="detect" disabled>Detect</button>
<p id="toast"></p>
<img id="preview" alt="" style="max-width: 320px">
<div id="result"></div>
<ul id="detections"></ul>
<script>
const $ = (id) => document.getElementById(id);
const toast = (msg) => { $("toast").textContent = msg; };

function render(result) {
  $("result").innerHTML = "";
  $("detections").innerHTML = "";
  if (!result) return;
  const img = document.createElement("img");
  img.src = result.output_image;
  $("result").appendChild(img);
  for (const d of result.detections) {
    const li = document.createElement("li");
    li.textContent = d.label + ": " + Math.round(d.confidence * 100) + "% (" + d.temperature + ")";
    $("detections").appendChild(li);
  }
}

const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => {
  const ev = JSON.parse(e.data);
  if (ev.type === "redirect") location.href = ev.message;
  else if (ev.type === "notice") toast(ev.message);
  else if (ev.type === "result_cleared") render(null);
  else if (ev.type === "result_replaced") render(ev.result);
};

$("file").onchange = async () => {
  const f = $("file").files[0];
  if (!f) return;
  const body = new FormData();
  body.append("image", f);
  const resp = await fetch("/api/image", { method: "POST", body });
  const data = await resp.json();
  if (resp.ok) { $("preview").src = data.preview; $("detect").disabled = false; toast(""); }
};

$("detect").onclick = async () => {
  $("detect").disabled = true;
  try { await fetch("/api/detect", { method: "POST" }); }
  finally { $("detect").disabled = false; }
};
</script>
</body>
</html>`
