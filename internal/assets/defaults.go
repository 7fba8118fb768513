package assets

const defaultStylesheet = `:root {
  --fg: #1f2933;
  --muted: #52606d;
  --bg: #ffffff;
  --accent: #2563eb;
  --surface: #f5f7fa;
  --radius: 8px;
}

*, *::before, *::after { box-sizing: border-box; }

body {
  margin: 0;
  font-family: system-ui, -apple-system, "Segoe UI", Roboto, sans-serif;
  line-height: 1.6;
  color: var(--fg);
  background: var(--bg);
}

img { max-width: 100%; height: auto; display: block; }
a { color: var(--accent); }

.site-nav {
  display: flex;
  flex-wrap: wrap;
  align-items: center;
  justify-content: space-between;
  gap: 1rem;
  padding: 1rem 1.5rem;
  background: var(--surface);
}

.site-nav ul { display: flex; gap: 1rem; list-style: none; margin: 0; padding: 0; }
.site-nav a { text-decoration: none; }
.site-nav a.active, .site-nav a[aria-current="page"] { font-weight: 600; }
.site-nav .brand { font-weight: 700; color: var(--fg); }

main { max-width: 72rem; margin: 0 auto; padding: 2rem 1.5rem; }
section { margin-bottom: 2.5rem; }

.site-footer {
  padding: 2rem 1.5rem;
  text-align: center;
  color: var(--muted);
  background: var(--surface);
}

[data-fallback="true"] { padding: 3rem 1.5rem; text-align: center; }

@media (max-width: 640px) {
  .site-nav { flex-direction: column; align-items: flex-start; }
  .site-nav ul { flex-direction: column; gap: 0.5rem; }
}
`

const defaultScript = `document.addEventListener('DOMContentLoaded', function () {
  document.querySelectorAll('a[href^="#"]').forEach(function (link) {
    link.addEventListener('click', function (event) {
      var target = document.querySelector(link.getAttribute('href'));
      if (target && !target.hasAttribute('data-route')) {
        event.preventDefault();
        target.scrollIntoView({ behavior: 'smooth' });
      }
    });
  });
});
`

const spaRouterScript = `(function () {
  function show() {
    var routes = document.querySelectorAll('[data-route]');
    if (!routes.length) return;
    var id = (location.hash || '').slice(1) || routes[0].id;
    var found = false;
    routes.forEach(function (el) {
      var match = el.id === id;
      el.hidden = !match;
      found = found || match;
    });
    if (!found) routes[0].hidden = false;
    document.querySelectorAll('.site-nav a[href^="#"]').forEach(function (a) {
      a.classList.toggle('active', a.getAttribute('href') === '#' + id);
    });
  }
  window.addEventListener('hashchange', show);
  document.addEventListener('DOMContentLoaded', show);
})();
`
