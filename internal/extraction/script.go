package extraction

// extractContainersScriptTemplate extracts one raw-value-per-field-role record from
// each element matching containerSelector, using the priority-ordered field rules
// supplied as JSON. ":parent-link" is a special selector meaning "the nearest
// ancestor anchor of this container" rather than a CSS query.
const extractContainersScriptTemplate = `(() => {
  const containerSelector = %q;
  const fieldRules = %s;

  function isPlaceholderSrc(src) {
    if (!src) return true;
    const lower = src.toLowerCase();
    if (lower.startsWith('data:image/gif;base64,r0lgod')) return true;
    if (/placeholder|blank|spacer|1x1|transparent\.(png|gif)/.test(lower)) return true;
    return false;
  }

  function resolveSrc(el) {
    const chain = ['src', 'data-src', 'data-lazy-src', 'data-original'];
    for (const attr of chain) {
      const val = attr === 'src' ? el.src : el.getAttribute(attr);
      if (val && !isPlaceholderSrc(val)) return val;
    }
    const srcset = el.getAttribute('srcset') || el.getAttribute('data-srcset');
    if (srcset) {
      const first = srcset.split(',')[0].trim().split(' ')[0];
      if (first && !isPlaceholderSrc(first)) return first;
    }
    return '';
  }

  function resolveTarget(container, selector) {
    if (selector === ':parent-link') return container.closest('a');
    if (!selector) return container;
    return container.querySelector(selector);
  }

  function extractOne(container, rule) {
    const target = resolveTarget(container, rule.selector);
    if (!target) return null;
    switch (rule.extractionType) {
      case 'text': return (target.textContent || '').trim();
      case 'href': return target.getAttribute('href') || '';
      case 'src': return resolveSrc(target);
      case 'attribute': return target.getAttribute(rule.attributeName || '') || '';
      case 'innerHTML': return target.innerHTML || '';
      default: return null;
    }
  }

  const byRole = {};
  for (const rule of fieldRules) {
    if (!byRole[rule.role]) byRole[rule.role] = [];
    byRole[rule.role].push(rule);
  }
  for (const role in byRole) {
    byRole[role].sort((a, b) => (a.priority || 0) - (b.priority || 0));
  }

  const containers = Array.from(document.querySelectorAll(containerSelector));
  return containers.map((container) => {
    const fields = {};
    for (const role in byRole) {
      for (const rule of byRole[role]) {
        const value = extractOne(container, rule);
        if (value !== null && value !== '') {
          fields[role] = value;
          break;
        }
      }
    }
    const dataAttrs = {
      productId: container.getAttribute('data-product-id') || '',
      sku: container.getAttribute('data-sku') || '',
      itemId: container.getAttribute('data-item-id') || '',
      channel: container.getAttribute('data-channel') || '',
    };
    return { fields, dataAttrs, innerHTML: container.innerHTML };
  });
})()`
