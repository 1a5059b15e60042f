package lazyload

// prepareScript rewrites common lazy-loading attributes to their eager equivalents
// and dispatches synthetic scroll/resize events so IntersectionObserver-based
// libraries that already fired once do not re-gate content a second time.
const prepareScript = `(() => {
  const attrs = ['data-src', 'data-lazy-src', 'data-original', 'data-srcset'];
  let rewritten = 0;
  document.querySelectorAll('img, source, iframe').forEach((el) => {
    for (const attr of attrs) {
      const val = el.getAttribute(attr);
      if (!val) continue;
      const target = attr === 'data-srcset' ? 'srcset' : 'src';
      el.setAttribute(target, val);
      rewritten++;
    }
    if (el.hasAttribute('loading')) el.setAttribute('loading', 'eager');
  });

  if (!window.__scraperIOStub) {
    window.__scraperIOStub = true;
    const OriginalIO = window.IntersectionObserver;
    if (OriginalIO) {
      window.IntersectionObserver = function (callback, options) {
        const obs = new OriginalIO(callback, options);
        const origObserve = obs.observe.bind(obs);
        obs.observe = (el) => {
          origObserve(el);
          setTimeout(() => {
            callback([{ target: el, isIntersecting: true, intersectionRatio: 1 }], obs);
          }, 0);
        };
        return obs;
      };
    }
  }

  window.dispatchEvent(new Event('scroll'));
  window.dispatchEvent(new Event('resize'));
  return rewritten;
})()`

// mutationStabilityScript installs (idempotently) a MutationObserver that records the
// timestamp of the last DOM mutation in window.__scraperLastMutation, used by the
// adaptive strategy's stability wait.
const mutationStabilityScript = `(() => {
  if (!window.__scraperMutationObserver) {
    window.__scraperLastMutation = Date.now();
    const obs = new MutationObserver(() => { window.__scraperLastMutation = Date.now(); });
    obs.observe(document.body, { childList: true, subtree: true, attributes: true });
    window.__scraperMutationObserver = obs;
  }
  return true;
})()`

const msSinceLastMutationScript = `(Date.now() - (window.__scraperLastMutation || 0))`

// loadingIndicatorVisibleScript reports whether any of the given selectors currently
// match a visible element, used to wait out spinner/skeleton loading indicators.
const loadingIndicatorVisibleScriptTemplate = `(() => {
  const selectors = %s;
  for (const sel of selectors) {
    const el = document.querySelector(sel);
    if (el) {
      const r = el.getBoundingClientRect();
      if (r.width > 0 && r.height > 0) return true;
    }
  }
  return false;
})()`

const scrollYScript = `window.scrollY`

const forceLoadAllScript = `(() => {
  document.querySelectorAll('img[loading="lazy"]').forEach((img) => img.setAttribute('loading', 'eager'));
  return true;
})()`

// productCountScript counts the distinct hrefs of every anchor currently in the DOM,
// falling back to heading text when no links are present. Mirrors pagination's
// identifier sampling so a TargetProducts bound is measured the same way a new-item
// count is.
const productCountScript = `(() => {
  const links = new Set(
    Array.from(document.querySelectorAll('a[href]'))
      .map((a) => a.getAttribute('href'))
      .filter(Boolean)
  );
  if (links.size > 0) return links.size;
  const headings = new Set(
    Array.from(document.querySelectorAll('h1, h2, h3, h4'))
      .map((h) => (h.textContent || '').trim())
      .filter(Boolean)
  );
  return headings.size;
})()`
