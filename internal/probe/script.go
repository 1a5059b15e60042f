package probe

// injectScript installs the page-side helper namespace under window.__scraper.
// Idempotent: checks the __scraperInjected sentinel before redefining anything, so
// calling inject() twice has the same observable state as calling it once.
const injectScript = `
(function() {
  if (window.__scraperInjected) { return true; }
  window.__scraper = window.__scraper || {};

  const PRICE_RE = /[£$€¥₹]\s*\d+([,.]\d{2,3})?|\d+([,.]\d{2,3})?\s*[£$€¥₹MAD]/gi;
  const STATE_CLASS_RE = /^(hover|active|focus|selected|ng-|js-|_|\d)/;

  function isStateOrUtilityClass(c) {
    return STATE_CLASS_RE.test(c);
  }

  function textOf(el) {
    return (el.innerText || el.textContent || '').trim();
  }

  function priceCount(el) {
    const m = textOf(el).match(PRICE_RE);
    return m ? m.length : 0;
  }

  function bbox(el) {
    const r = el.getBoundingClientRect();
    return { x: r.x, y: r.y, width: r.width, height: r.height };
  }

  function buildSelectorPath(el, maxAncestors) {
    let parts = [];
    let node = el;
    for (let i = 0; i < maxAncestors && node && node.nodeType === 1; i++) {
      if (node.id && !/^[0-9]/.test(node.id)) {
        parts.unshift('#' + CSS.escape(node.id));
        break;
      }
      const dataAttr = ['data-product', 'data-sku', 'data-product-id', 'data-item', 'data-itemid']
        .find(a => node.hasAttribute(a));
      if (dataAttr) {
        parts.unshift(node.tagName.toLowerCase() + '[' + dataAttr + '="' + CSS.escape(node.getAttribute(dataAttr)) + '"]');
        node = node.parentElement;
        continue;
      }
      const classes = Array.from(node.classList).filter(c => !isStateOrUtilityClass(c));
      if (classes.length > 0) {
        parts.unshift(node.tagName.toLowerCase() + '.' + classes.slice(0, 2).map(CSS.escape).join('.'));
      } else {
        const parent = node.parentElement;
        let idx = 1;
        if (parent) {
          const siblings = Array.from(parent.children).filter(c => c.tagName === node.tagName);
          idx = siblings.indexOf(node) + 1;
        }
        parts.unshift(node.tagName.toLowerCase() + ':nth-of-type(' + idx + ')');
      }
      node = node.parentElement;
    }
    return parts.join(' > ');
  }

  function gatherSweep1() {
    return Array.from(document.querySelectorAll('article, [role=listitem], [itemtype*=Product]'));
  }

  function gatherSweep2() {
    return Array.from(document.querySelectorAll(
      '[data-product], [data-sku], [data-product-id], [data-item], [data-itemid]'));
  }

  const CLASS_TOKENS = [
    'product-card', 'productCard', 'product-item', 'productItem', 'product-tile', 'productTile',
    'product-box', 'productBox', 'product-cell', 'productCell', 'product-wrapper', 'productWrapper',
    'product-container', 'productContainer', 'product-unit', 'product-thumb', 'product-block',
    'product-grid-item', 'productGridItem', 'product-list-item', 'productListItem',
    'item-card', 'itemCard', 'item-tile', 'itemTile', 'item-box', 'itemBox', 'item-cell',
    'card-product', 'card-item', 'tile-product', 'tile-item', 'box-product',
    'listing-item', 'listingItem', 'listing-card', 'listing-tile',
    'grid-item', 'gridItem', 'grid-cell', 'grid-product', 'grid-tile',
    'shelf-item', 'shelfItem', 'shelf-product', 'catalog-item', 'catalogItem', 'catalog-card',
    'result-item', 'resultItem', 'result-card', 'search-result-item', 'sku-card', 'sku-tile',
  ];

  function gatherSweep3() {
    let out = [];
    for (const tok of CLASS_TOKENS) {
      out = out.concat(Array.from(document.querySelectorAll('[class*="' + tok + '"]')));
    }
    return out;
  }

  function gatherSweep4() {
    let out = [];
    document.querySelectorAll('*').forEach(el => {
      const style = getComputedStyle(el);
      if (style.display === 'grid' || style.display === 'flex') {
        out = out.concat(Array.from(el.children));
      }
    });
    return out;
  }

  function gatherSweep5() {
    let out = [];
    document.querySelectorAll('*').forEach(el => {
      const img = el.querySelector('img');
      if (!img) return;
      const r = img.getBoundingClientRect();
      if (r.width < 50 || r.height < 50) return;
      const hasPriceText = priceCount(el) > 0;
      const hasPriceClass = !!el.querySelector('[class*="price"], [class*="cost"]');
      if (hasPriceText || hasPriceClass) out.push(el);
    });
    return out;
  }

  function gatherSweep6() {
    const groups = new Map();
    document.querySelectorAll('img').forEach(img => {
      const a = img.closest('a');
      if (!a) return;
      const parent = a.parentElement;
      if (!parent) return;
      const key = parent;
      if (!groups.has(key)) groups.set(key, []);
      groups.get(key).push(a);
    });
    let best = [];
    groups.forEach(members => {
      if (members.length >= 3 && members.length > best.length) best = members;
    });
    return best;
  }

  window.__scraper.gatherCandidates = function(maxCandidates) {
    const vw = window.innerWidth;
    const seen = new Set();
    const out = [];

    const sweeps = [
      { els: gatherSweep1(), minSize: 50, maxWidthRatio: 0.9 },
      { els: gatherSweep2(), minSize: 50, maxWidthRatio: 0.9 },
      { els: gatherSweep3(), minSize: 50, maxWidthRatio: 0.9 },
      { els: gatherSweep4(), minSize: 50, maxWidthRatio: 0.9 },
      { els: gatherSweep5(), minSize: 80, maxWidthRatio: 0.6 },
      { els: gatherSweep6(), minSize: 80, maxWidthRatio: 0.6 },
    ];

    for (const sweep of sweeps) {
      for (const el of sweep.els) {
        if (out.length >= maxCandidates) break;
        if (seen.has(el)) continue;
        const r = bbox(el);
        if (r.width < sweep.minSize || r.height < sweep.minSize) continue;
        if (r.width > vw * sweep.maxWidthRatio) continue;
        seen.add(el);

        const selector = buildSelectorPath(el, 5);
        const classes = Array.from(el.classList);
        const parent = el.parentElement;
        const parentStyle = parent ? getComputedStyle(parent) : null;
        const siblings = parent ? Array.from(parent.children) : [];

        out.push({
          selector: selector,
          tag: el.tagName.toLowerCase(),
          classes: classes,
          structural: {
            semanticTag: ['article', 'section'].includes(el.tagName.toLowerCase()),
            productDataAttr: ['data-product', 'data-sku', 'data-product-id', 'data-item', 'data-itemid']
              .some(a => el.hasAttribute(a)),
            schemaOrgProduct: (el.getAttribute('itemtype') || '').includes('Product'),
            nestingDepth: (function(n){let d=0;while(n.parentElement){d++;n=n.parentElement;}return d;})(el),
          },
          visual: {
            bbox: r,
            aspectRatio: r.height > 0 ? r.width / r.height : 0,
            widthRatio: vw > 0 ? r.width / vw : 0,
            heightRatio: window.innerHeight > 0 ? r.height / window.innerHeight : 0,
            parentIsGrid: parentStyle ? (parentStyle.display === 'grid' || parentStyle.display === 'flex') : false,
            siblingCount: siblings.length,
            similarSibling: siblings.filter(s => s.tagName === el.tagName).length >= 3,
          },
          content: {
            imageCount: el.querySelectorAll('img').length,
            textLength: textOf(el).length,
            linkCount: el.querySelectorAll('a').length,
            priceCount: priceCount(el),
            hasProductLink: Array.from(el.querySelectorAll('a')).some(a =>
              /\/(p|product|item|products)\//.test(a.getAttribute('href') || '')),
            hasTitleHeading: !!el.querySelector('h1,h2,h3,h4,[class*="title"],[class*="name"]'),
          },
          context: {
            parentTag: parent ? parent.tagName.toLowerCase() : '',
            structuralSimilarity: 0,
          },
          childSummaries: Array.from(el.children).slice(0, 5).map(c =>
            c.tagName.toLowerCase() + ':' + c.children.length + ':' + c.classList.length),
        });
      }
      if (out.length >= maxCandidates) break;
    }

    return out;
  };

  window.__scraper.testSelector = function(css) {
    try {
      const els = document.querySelectorAll(css);
      return { valid: true, count: els.length };
    } catch (e) {
      return { valid: false, count: 0 };
    }
  };

  window.__scraper.getBoundingBox = function(css) {
    const el = document.querySelector(css);
    if (!el) return null;
    return bbox(el);
  };

  window.__scraper.extractContainerContent = function(css) {
    const el = document.querySelector(css);
    return el ? el.innerHTML : null;
  };

  window.__scraper.getLinkAtPoint = function(x, y) {
    const el = document.elementFromPoint(x, y);
    const a = el ? el.closest('a') : null;
    return a ? a.href : null;
  };

  window.__scraperInjected = true;
  return true;
})();
`

// waitForStabilityScript reports whether document.readyState is "complete"; it does
// not watch for DOM mutations.
const waitForStabilityScript = `
(function() {
  return document.readyState === 'complete';
})();
`
