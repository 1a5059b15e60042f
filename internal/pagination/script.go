package pagination

// discoverScript returns pagination candidates found in the current DOM: numbered
// page links, a next-button, and a load-more button, each with a confidence matching
// spec.md's Discover-phase rules. It deliberately never proposes a "previous" or
// disabled control as a candidate.
const discoverScript = `(() => {
  const candidates = [];

  function bbox(el) {
    const r = el.getBoundingClientRect();
    return { x: r.left, y: r.top, width: r.width, height: r.height };
  }

  function isDisabled(el) {
    return el.disabled || el.getAttribute('aria-disabled') === 'true' ||
      el.classList.contains('disabled') || el.classList.contains('is-disabled');
  }

  function isPrevLike(el) {
    const text = (el.textContent || '').trim().toLowerCase();
    const aria = (el.getAttribute('aria-label') || '').toLowerCase();
    return /prev|previous|‹|«/.test(text) || /prev|previous/.test(aria);
  }

  // numbered page links
  const pageLinkSelectors = ['a[href*="page="]', '.pagination a', 'nav[aria-label*="pagination" i] a', '[class*="pagination"] a'];
  const seen = new Set();
  for (const sel of pageLinkSelectors) {
    document.querySelectorAll(sel).forEach((el) => {
      if (seen.has(el) || isDisabled(el) || isPrevLike(el)) return;
      const text = (el.textContent || '').trim();
      if (!/^\d+$/.test(text)) return;
      seen.add(el);
      candidates.push({ selector: cssPathOf(el), kind: 'numbered', text, confidence: 0.98, bbox: bbox(el) });
    });
  }

  // next-button
  const nextSelectors = ['a[rel="next"]', 'button[aria-label*="next" i]', 'a[aria-label*="next" i]', '[class*="next"]'];
  for (const sel of nextSelectors) {
    document.querySelectorAll(sel).forEach((el) => {
      if (seen.has(el) || isDisabled(el) || isPrevLike(el)) return;
      seen.add(el);
      candidates.push({ selector: cssPathOf(el), kind: 'next_button', text: (el.textContent || '').trim(), confidence: 0.88, bbox: bbox(el) });
    });
  }

  // load-more
  const loadMoreSelectors = ['button[class*="load-more" i]', 'button[class*="show-more" i]', '[class*="load-more" i]', '[class*="loadmore" i]'];
  for (const sel of loadMoreSelectors) {
    document.querySelectorAll(sel).forEach((el) => {
      if (seen.has(el) || isDisabled(el)) return;
      seen.add(el);
      candidates.push({ selector: cssPathOf(el), kind: 'load_more', text: (el.textContent || '').trim(), confidence: 0.8, bbox: bbox(el) });
    });
  }

  function cssPathOf(el) {
    if (el.id && !/^\d/.test(el.id)) return '#' + el.id;
    const parts = [];
    let node = el;
    let depth = 0;
    while (node && node.nodeType === 1 && depth < 5) {
      let part = node.tagName.toLowerCase();
      if (node.className && typeof node.className === 'string') {
        const cls = node.className.trim().split(/\s+/).filter(Boolean).slice(0, 2);
        if (cls.length) part += '.' + cls.join('.');
      }
      parts.unshift(part);
      node = node.parentElement;
      depth++;
    }
    return parts.join(' > ');
  }

  return candidates;
})()`

// identifierSampleScript returns a stable set of "unique identifier" strings for the
// current product listing: the distinct hrefs of every anchor, falling back to heading
// text when no links are present. Used before/after a click or scroll trial to detect
// whether new items actually appeared.
const identifierSampleScript = `(() => {
  const links = Array.from(document.querySelectorAll('a[href]'))
    .map((a) => a.getAttribute('href'))
    .filter(Boolean);
  if (links.length > 0) return Array.from(new Set(links));
  const headings = Array.from(document.querySelectorAll('h1, h2, h3, h4'))
    .map((h) => (h.textContent || '').trim())
    .filter(Boolean);
  return Array.from(new Set(headings));
})()`
