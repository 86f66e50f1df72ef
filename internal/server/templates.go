package server

import "html/template"

// viewerPageTemplate renders the document inside the iframe. Page images are
// fetched with the viewer token; when random placement is enabled the dynamic
// stamp is animated client-side over the images, so the server composites
// only the static layer.
var viewerPageTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.DocumentName}}</title>
<style>
body { margin: 0; background: #525659; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
.page-wrap { position: relative; max-width: 960px; margin: 12px auto; }
.page-wrap img { display: block; width: 100%; user-select: none; -webkit-user-drag: none; }
.wm-overlay { position: absolute; inset: 0; pointer-events: none; overflow: hidden; }
.wm-stamp { position: absolute; white-space: nowrap; transition: top 1s linear, left 1s linear; }
</style>
</head>
<body oncontextmenu="return false">
{{range .Pages}}
<div class="page-wrap">
<img src="/documents/{{$.DocumentID}}/page/{{.}}?viewer_token={{$.Token}}" alt="page {{.}}" loading="lazy">
<div class="wm-overlay" data-page="{{.}}"></div>
</div>
{{end}}
<script>
(function() {
	var cfg = {{.SettingsJSON}};
	var text = {{.WatermarkText}};
	if (!cfg.dynamic_watermark_enabled || !cfg.random_positions_enabled || !text) { return; }
	var overlays = document.querySelectorAll('.wm-overlay');
	overlays.forEach(function(overlay) {
		var count = Math.max(1, cfg.positions_count || 1);
		for (var i = 0; i < count; i++) {
			var stamp = document.createElement('div');
			stamp.className = 'wm-stamp';
			stamp.textContent = text;
			stamp.style.opacity = cfg.opacity;
			stamp.style.fontSize = cfg.font_size + 'px';
			stamp.style.color = 'rgb(' + cfg.color_r + ',' + cfg.color_g + ',' + cfg.color_b + ')';
			overlay.appendChild(stamp);
		}
		function shuffle() {
			overlay.querySelectorAll('.wm-stamp').forEach(function(stamp) {
				stamp.style.left = (Math.random() * 80) + '%';
				stamp.style.top = (Math.random() * 90) + '%';
			});
		}
		shuffle();
		setInterval(shuffle, cfg.animation_speed || 2000);
	});
})();
</script>
</body>
</html>
`))

// embedPageTemplate is the shell returned by /viewer/embed: a full-bleed
// iframe pointed at the viewer URL, always https to avoid mixed-content
// blocks on embedding sites.
var embedPageTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta http-equiv="Content-Security-Policy" content="upgrade-insecure-requests">
<title>{{.DocumentName}}</title>
<style>
html, body { width: 100%; height: 100%; margin: 0; padding: 0; overflow: hidden; background: transparent; }
iframe { width: 100%; height: 100%; border: none; display: block; }
</style>
</head>
<body>
<iframe src="{{.ViewerURL}}" allowfullscreen sandbox="allow-same-origin allow-scripts allow-popups allow-forms" loading="eager"></iframe>
</body>
</html>
`))
